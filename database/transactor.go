package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn as one unit of work. Writes made through ctx inside
// fn either all commit or all roll back when a session is available.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionTransactor uses multi-document transactions and therefore needs
// a replica set or sharded cluster.
type SessionTransactor struct {
	client *mongo.Client
}

func (t *SessionTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Direct runs fn without a transaction, for standalone servers. Callers
// rely on their compensating actions for consistency.
type Direct struct{}

func (Direct) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
