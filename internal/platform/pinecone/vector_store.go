package pinecone

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/secondbrain-backend/internal/platform/httpx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

// VectorStore is the provider-neutral vector index used by the RAG steps.
// Qdrant and chromem implement it too.
type VectorStore interface {
	// EnsureIndex creates the index with dimension dim when missing and fails
	// when an existing index has a different dimension.
	EnsureIndex(ctx context.Context, dim int) error
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// QueryMatches returns IDs with their similarity scores (higher is better) and metadata.
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]VectorMatch, error)
	// DeleteIDs removes ids. When only part of ids could be removed the error
	// is a *PartialDeleteError naming the removed ones.
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}

// Pinecone rejects delete requests with more than 1000 ids.
const maxDeleteBatch = 1000

// PartialDeleteError reports a delete that removed Deleted before failing.
type PartialDeleteError struct {
	Deleted []string
	Err     error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("vector delete stopped after %d ids: %v", len(e.Deleted), e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type StoreConfig struct {
	IndexName       string
	IndexHost       string
	NamespacePrefix string
	Cloud           string
	Region          string
	// ReadyTimeout bounds the wait for a freshly created index.
	ReadyTimeout time.Duration
}

type vectorStore struct {
	log       *logger.Logger
	pc        Client
	cfg       StoreConfig
	mu        sync.RWMutex
	indexHost string
}

func NewVectorStore(log *logger.Logger, pc Client, cfg StoreConfig) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}
	cfg.IndexName = strings.TrimSpace(cfg.IndexName)
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("missing PINECONE_INDEX_NAME")
	}
	cfg.NamespacePrefix = strings.TrimSpace(cfg.NamespacePrefix)
	if cfg.NamespacePrefix == "" {
		cfg.NamespacePrefix = "sb"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	return &vectorStore{
		log:       log.With("service", "PineconeVectorStore"),
		pc:        pc,
		cfg:       cfg,
		indexHost: strings.TrimSpace(cfg.IndexHost),
	}, nil
}

func (s *vectorStore) EnsureIndex(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("pinecone ensure_index: dimension must be > 0")
	}
	desc, err := s.pc.DescribeIndex(ctx, s.cfg.IndexName)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("pinecone describe_index failed: %w", err)
	}
	if desc == nil {
		s.log.Info("Creating pinecone index", "index_name", s.cfg.IndexName, "dimension", dim)
		desc, err = s.pc.CreateIndex(ctx, CreateIndexRequest{
			Name:      s.cfg.IndexName,
			Dimension: dim,
			Metric:    "cosine",
			Spec:      IndexSpec{Serverless: &ServerlessSpec{Cloud: s.cfg.Cloud, Region: s.cfg.Region}},
		})
		if err != nil {
			return fmt.Errorf("pinecone create_index failed: %w", err)
		}
		if desc, err = s.waitReady(ctx, desc); err != nil {
			return err
		}
	}
	if desc.Dimension != 0 && desc.Dimension != dim {
		return fmt.Errorf("pinecone index %q has dimension %d, embedding model produces %d", s.cfg.IndexName, desc.Dimension, dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexHost == "" {
		s.indexHost = strings.TrimSpace(desc.Host)
		if s.indexHost == "" {
			return fmt.Errorf("pinecone describe_index returned empty host")
		}
		s.log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index",
			"index_name", s.cfg.IndexName,
			"index_host", s.indexHost,
		)
	}
	return nil
}

func (s *vectorStore) waitReady(ctx context.Context, desc *IndexDescription) (*IndexDescription, error) {
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	for desc == nil || !desc.Status.Ready {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("pinecone index %q not ready after %s", s.cfg.IndexName, s.cfg.ReadyTimeout)
		}
		if err := httpx.Sleep(ctx, 2*time.Second); err != nil {
			return nil, err
		}
		next, err := s.pc.DescribeIndex(ctx, s.cfg.IndexName)
		if err != nil && !IsNotFound(err) {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		desc = next
	}
	return desc, nil
}

func (s *vectorStore) host() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexHost == "" {
		return "", fmt.Errorf("pinecone index host unresolved; call EnsureIndex first")
	}
	return s.indexHost, nil
}

func (s *vectorStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	host, err := s.host()
	if err != nil {
		return err
	}
	_, err = s.pc.UpsertVectors(ctx, host, UpsertRequest{
		Namespace: s.qualifyNamespace(namespace),
		Vectors:   vectors,
	})
	return err
}

func (s *vectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]VectorMatch, error) {
	host, err := s.host()
	if err != nil {
		return nil, err
	}
	resp, err := s.pc.Query(ctx, host, QueryRequest{
		Namespace:       s.qualifyNamespace(namespace),
		Vector:          q,
		TopK:            topK,
		Filter:          filter,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]VectorMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, VectorMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out, nil
}

func (s *vectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	host, err := s.host()
	if err != nil {
		return err
	}
	ns := s.qualifyNamespace(namespace)
	for start := 0; start < len(ids); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.pc.DeleteVectors(ctx, host, DeleteRequest{Namespace: ns, IDs: ids[start:end]}); err != nil {
			if start == 0 {
				return err
			}
			return &PartialDeleteError{Deleted: append([]string(nil), ids[:start]...), Err: err}
		}
	}
	return nil
}

func (s *vectorStore) qualifyNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s.cfg.NamespacePrefix
	}
	return s.cfg.NamespacePrefix + ":" + ns
}
