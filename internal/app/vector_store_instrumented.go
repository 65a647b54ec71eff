package app

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

// instrumentedVectorStore traces and times every call into the selected
// provider. It never alters arguments, results or errors.
type instrumentedVectorStore struct {
	provider string
	inner    pinecone.VectorStore
	metrics  *observability.Metrics
}

func instrumentVectorStore(provider string, inner pinecone.VectorStore) pinecone.VectorStore {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{
		provider: provider,
		inner:    inner,
		metrics:  observability.Current(),
	}
}

func (s *instrumentedVectorStore) EnsureIndex(ctx context.Context, dim int) (err error) {
	ctx, done := s.track(ctx, "ensure_index", attribute.Int("vector.dim", dim))
	defer func() { done(err) }()
	return s.inner.EnsureIndex(ctx, dim)
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) (err error) {
	ctx, done := s.track(ctx, "upsert",
		attribute.String("vector.namespace", namespace),
		attribute.Int("vector.count", len(vectors)),
	)
	defer func() { done(err) }()
	return s.inner.Upsert(ctx, namespace, vectors)
}

func (s *instrumentedVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) (out []pinecone.VectorMatch, err error) {
	ctx, done := s.track(ctx, "query_matches",
		attribute.String("vector.namespace", namespace),
		attribute.Int("vector.top_k", topK),
	)
	defer func() { done(err) }()
	return s.inner.QueryMatches(ctx, namespace, q, topK, filter)
}

func (s *instrumentedVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) (err error) {
	ctx, done := s.track(ctx, "delete_ids",
		attribute.String("vector.namespace", namespace),
		attribute.Int("vector.count", len(ids)),
	)
	defer func() { done(err) }()
	return s.inner.DeleteIDs(ctx, namespace, ids)
}

func (s *instrumentedVectorStore) track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("vector.provider", s.provider))
	ctx, span := observability.StartSpan(ctx, "vectorstore."+operation, attrs...)
	return ctx, func(err error) {
		observability.EndSpan(span, err)
		s.metrics.ObserveVectorStoreOperation(s.provider, operation, operationStatus(err), time.Since(start))
	}
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
