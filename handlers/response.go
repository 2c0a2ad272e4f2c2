// Package handlers exposes the back office over JSON. Every handler talks to
// stores or services through a request scoped context and reports failures
// through respondError.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

const requestTimeout = 10 * time.Second

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		models.RegisterValidation(v)
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {"message"} envelope. Internal errors are attached
// to the gin context so the access log records them with the request id.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": apperr.Message(err)})
}

func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondError(c, apperr.Validation("Invalid id"))
		return primitive.NilObjectID, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

// bindError names the offending fields of a binding failure.
func bindError(err error) error { return models.FieldError(err) }

func query(c *gin.Context) repository.Query {
	return repository.QueryFunc(c.Query)
}
