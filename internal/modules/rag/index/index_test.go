package index

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type fakeStore struct {
	pinecone.VectorStore
	ensured int
	err     error
}

func (f *fakeStore) EnsureIndex(_ context.Context, dim int) error {
	f.ensured = dim
	return f.err
}

func TestBootstrapDetectsDimension(t *testing.T) {
	store := &fakeStore{}
	h, err := Bootstrap(context.Background(), logger.Nop(), fakeEmbedder{vec: make([]float32, 768)}, store, "notes")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if h.Dim != 768 || store.ensured != 768 || h.Namespace != "notes" {
		t.Fatalf("handle: got=%+v ensured=%d", h, store.ensured)
	}
}

func TestBootstrapFailsWithoutVector(t *testing.T) {
	store := &fakeStore{}
	if _, err := Bootstrap(context.Background(), logger.Nop(), fakeEmbedder{}, store, ""); err == nil {
		t.Fatalf("want error for empty probe vector")
	}
	if store.ensured != 0 {
		t.Fatalf("index must not be touched")
	}
	if _, err := Bootstrap(context.Background(), logger.Nop(), fakeEmbedder{err: errors.New("down")}, store, ""); err == nil {
		t.Fatalf("want error when embedder fails")
	}
}

func TestBootstrapPropagatesIndexError(t *testing.T) {
	store := &fakeStore{err: errors.New("dimension mismatch")}
	if _, err := Bootstrap(context.Background(), logger.Nop(), fakeEmbedder{vec: []float32{1}}, store, ""); err == nil {
		t.Fatalf("want error")
	}
}
