// Package services holds the operations that touch more than one collection:
// sales against stock and clients, purchases against stock and suppliers,
// and user authentication.
package services

import (
	"context"

	"go.uber.org/zap"

	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

// Transactor runs fn as one unit of work.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ClientStore interface {
	repository.Store[models.Client]
	repository.ClientLedger
}

// undoLog collects the inverse of every write already applied, so a failure
// half way through a multi-collection mutation can be rolled back by hand
// when no transaction is available.
type undoLog struct {
	steps []undoStep
	log   *zap.Logger
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func newUndoLog(log *zap.Logger) *undoLog {
	return &undoLog{log: log}
}

func (u *undoLog) add(name string, fn func(ctx context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

// rollback runs the recorded steps newest first. It ignores cancellation of
// ctx so a timed out request still restores what it changed.
func (u *undoLog) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.fn(ctx); err != nil {
			u.log.Error("rollback step failed", zap.String("step", step.name), zap.Error(err))
		}
	}
	u.steps = nil
}
