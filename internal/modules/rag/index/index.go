package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

// Probe is the text embedded once at startup to learn the model's dimension.
const Probe = "dimension probe"

// Handle is the immutable result of Bootstrap; use cases receive it instead
// of reaching for globals.
type Handle struct {
	Dim       int
	Store     pinecone.VectorStore
	Namespace string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Bootstrap detects the embedding dimension and ensures the vector index
// exists with it. Serving must not start until it returns.
func Bootstrap(ctx context.Context, log *logger.Logger, emb Embedder, store pinecone.VectorStore, namespace string) (*Handle, error) {
	if log == nil || emb == nil || store == nil {
		return nil, fmt.Errorf("index bootstrap: missing deps")
	}
	vec, err := emb.Embed(ctx, Probe)
	if err != nil {
		return nil, fmt.Errorf("index bootstrap: detect embedding dimension: %w", err)
	}
	dim := len(vec)
	if dim == 0 {
		return nil, fmt.Errorf("index bootstrap: embedding model returned an empty vector")
	}
	if err := store.EnsureIndex(ctx, dim); err != nil {
		return nil, fmt.Errorf("index bootstrap: ensure index: %w", err)
	}
	log.Info("Vector index ready", "dimension", dim, "namespace", namespace)
	return &Handle{Dim: dim, Store: store, Namespace: strings.TrimSpace(namespace)}, nil
}
