package apierr

import (
	"errors"
	"fmt"
	"net/http"

	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps the application error taxonomy onto an HTTP status and code.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return New(http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, apperr.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperr.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, apperr.ErrDocumentBusy):
		return New(http.StatusConflict, "document_busy", err)
	case errors.Is(err, apperr.ErrEmbeddingFailure):
		return New(http.StatusBadGateway, "embedding_failed", err)
	case errors.Is(err, apperr.ErrCrossStoreInconsistency):
		return New(http.StatusBadGateway, "cross_store_inconsistency", err)
	}
	if svc := apperr.ExternalService(err); svc != "" {
		if svc == apperr.ServiceDocumentStore || svc == apperr.ServiceLock {
			return New(http.StatusServiceUnavailable, svc+"_unavailable", err)
		}
		return New(http.StatusBadGateway, svc+"_failed", err)
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
