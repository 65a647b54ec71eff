package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request rejected before any external call.
	ErrValidation = errors.New("validation failed")
	// ErrEmbeddingFailure means the query embedding produced no vector.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrNotFound covers both missing resources and resources owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrCrossStoreInconsistency means the vector delete failed and the document delete was rolled back.
	ErrCrossStoreInconsistency = errors.New("cross-store inconsistency")
	// ErrDocumentBusy means another operation holds the document lock.
	ErrDocumentBusy = errors.New("document busy")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Collaborator names used in ExternalServiceError.Service.
const (
	ServiceDocumentStore   = "document_store"
	ServiceVectorStore     = "vector_store"
	ServiceEmbeddingModel  = "embedding_model"
	ServiceGenerativeModel = "generative_model"
	ServiceLock            = "lock"
)

// ExternalServiceError wraps an outage of a named collaborator.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e == nil {
		return "external service error"
	}
	if e.Err == nil {
		return e.Service + " unavailable"
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External wraps err as an outage of service. A nil err stays nil.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ExternalServiceError
	if errors.As(err, &existing) {
		return err
	}
	return &ExternalServiceError{Service: service, Err: err}
}

// Validation returns an ErrValidation carrying msg.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// ExternalService returns the failing collaborator name, or "" when err is not an outage.
func ExternalService(err error) string {
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext.Service
	}
	return ""
}
