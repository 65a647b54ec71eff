package app

import (
	"fmt"
	"strings"
)

type VectorProvider string

const (
	VectorProviderPinecone VectorProvider = "pinecone"
	VectorProviderQdrant   VectorProvider = "qdrant"
	VectorProviderChromem  VectorProvider = "chromem"
)

type VectorProviderConfigError struct {
	Value string
}

func (e *VectorProviderConfigError) Error() string {
	if e == nil {
		return "invalid vector provider config"
	}
	return fmt.Sprintf("unsupported VECTOR_PROVIDER=%q; expected pinecone, qdrant or chromem", e.Value)
}

// ParseVectorProvider accepts the provider names case-insensitively; empty
// selects pinecone.
func ParseVectorProvider(raw string) (VectorProvider, error) {
	switch v := VectorProvider(strings.ToLower(strings.TrimSpace(raw))); v {
	case "":
		return VectorProviderPinecone, nil
	case VectorProviderPinecone, VectorProviderQdrant, VectorProviderChromem:
		return v, nil
	default:
		return "", &VectorProviderConfigError{Value: raw}
	}
}
