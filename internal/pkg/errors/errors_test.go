package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExternalKeepsInnermostService(t *testing.T) {
	base := errors.New("connection refused")
	err := External(ServiceVectorStore, base)
	wrapped := External(ServiceDocumentStore, fmt.Errorf("delete: %w", err))
	if got := ExternalService(wrapped); got != ServiceVectorStore {
		t.Fatalf("service: want=%q got=%q", ServiceVectorStore, got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("errors.Is: cause lost")
	}
}

func TestExternalNilStaysNil(t *testing.T) {
	if External(ServiceLock, nil) != nil {
		t.Fatalf("External(nil) should be nil")
	}
}

func TestValidationMatchesSentinel(t *testing.T) {
	err := Validation("text is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("errors.Is: want ErrValidation")
	}
	if err.Error() != "validation failed: text is required" {
		t.Fatalf("message: got=%q", err.Error())
	}
}
