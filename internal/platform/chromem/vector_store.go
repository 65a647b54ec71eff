package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	cg "github.com/philippgille/chromem-go"

	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

// jsonKeysKey lists metadata keys whose values were JSON-encoded, since
// chromem only stores string metadata.
const jsonKeysKey = "_sb_json_keys"

type Config struct {
	// Path enables on-disk persistence. Empty keeps everything in memory.
	Path            string
	Compress        bool
	NamespacePrefix string
	Concurrency     int
}

type vectorStore struct {
	log *logger.Logger
	db  *cg.DB
	cfg Config

	mu  sync.RWMutex
	dim int
}

var errNoEmbedder = errors.New("chromem collection has no embedder; vectors must be precomputed")

func refuseEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedder }

func NewVectorStore(log *logger.Logger, cfg Config) (pinecone.VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.NamespacePrefix = strings.TrimSpace(cfg.NamespacePrefix)
	if cfg.NamespacePrefix == "" {
		cfg.NamespacePrefix = "sb"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	var db *cg.DB
	if p := strings.TrimSpace(cfg.Path); p != "" {
		var err error
		db, err = cg.NewPersistentDB(p, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %q: %w", p, err)
		}
	} else {
		db = cg.NewDB()
	}
	return &vectorStore{
		log: log.With("service", "ChromemVectorStore"),
		db:  db,
		cfg: cfg,
	}, nil
}

// EnsureIndex records the dimension and probes every non-empty collection with
// a vector of that dimension; chromem rejects similarity between vectors of
// different lengths. Collections are created lazily per namespace.
func (s *vectorStore) EnsureIndex(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("chromem ensure_index: dimension must be > 0")
	}
	probe := make([]float32, dim)
	probe[0] = 1
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, col := range s.db.ListCollections() {
		if !s.owns(name) || col.Count() == 0 {
			continue
		}
		if _, err := col.QueryEmbedding(ctx, probe, 1, nil, nil); err != nil {
			return fmt.Errorf("chromem collection %q incompatible with dimension %d: %w", name, dim, err)
		}
	}
	s.dim = dim
	s.log.Info("Chromem vector store ready", "path", s.cfg.Path, "dimension", dim)
	return nil
}

func (s *vectorStore) checkDim(n int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dim == 0 {
		return fmt.Errorf("chromem dimension unknown; call EnsureIndex first")
	}
	if n != s.dim {
		return fmt.Errorf("chromem vector dimension mismatch: want=%d got=%d", s.dim, n)
	}
	return nil
}

func (s *vectorStore) collection(namespace string) (*cg.Collection, error) {
	col, err := s.db.GetOrCreateCollection(s.qualifyNamespace(namespace), nil, refuseEmbed)
	if err != nil {
		return nil, fmt.Errorf("chromem collection: %w", err)
	}
	return col, nil
}

func (s *vectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	docs := make([]cg.Document, 0, len(vectors))
	for _, v := range vectors {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return fmt.Errorf("chromem upsert: vector id is required")
		}
		if err := s.checkDim(len(v.Values)); err != nil {
			return err
		}
		meta, err := encodeMetadata(v.Metadata)
		if err != nil {
			return fmt.Errorf("chromem upsert %q: %w", id, err)
		}
		docs = append(docs, cg.Document{
			ID:        id,
			Metadata:  meta,
			Embedding: append([]float32(nil), v.Values...),
		})
	}
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	return col.AddDocuments(ctx, docs, s.cfg.Concurrency)
}

func (s *vectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.VectorMatch, error) {
	if len(q) == 0 {
		return nil, fmt.Errorf("chromem query: query vector required")
	}
	if err := s.checkDim(len(q)); err != nil {
		return nil, err
	}
	where, err := translateFilter(filter)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	col, err := s.collection(namespace)
	if err != nil {
		return nil, err
	}
	res, err := queryClamped(ctx, col, q, topK, where)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	out := make([]pinecone.VectorMatch, 0, len(res))
	for _, r := range res {
		out = append(out, pinecone.VectorMatch{
			ID:       r.ID,
			Score:    float64(r.Similarity),
			Metadata: decodeMetadata(r.Metadata),
		})
	}
	return out, nil
}

func (s *vectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, clean...); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	return nil
}

type embeddingQuerier interface {
	Count() int
	QueryEmbedding(ctx context.Context, q []float32, nResults int, where, whereDocument map[string]string) ([]cg.Result, error)
}

// chromem rejects nResults above the collection size, and a concurrent delete
// can shrink the collection between Count and the query.
const clampAttempts = 3

func queryClamped(ctx context.Context, col embeddingQuerier, q []float32, topK int, where map[string]string) ([]cg.Result, error) {
	var err error
	for attempt := 0; attempt < clampAttempts; attempt++ {
		n := col.Count()
		if n == 0 {
			return []cg.Result{}, nil
		}
		k := topK
		if k > n {
			k = n
		}
		var res []cg.Result
		res, err = col.QueryEmbedding(ctx, q, k, where, nil)
		if err == nil {
			return res, nil
		}
		if !strings.Contains(err.Error(), "number of documents in the collection") {
			return nil, err
		}
	}
	return nil, err
}

func (s *vectorStore) qualifyNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s.cfg.NamespacePrefix
	}
	return s.cfg.NamespacePrefix + ":" + ns
}

func (s *vectorStore) owns(collection string) bool {
	return collection == s.cfg.NamespacePrefix || strings.HasPrefix(collection, s.cfg.NamespacePrefix+":")
}

// translateFilter accepts equality filters only: {"k": "v"} or {"k": {"$eq": "v"}}.
func translateFilter(filter map[string]any) (map[string]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(filter))
	for k, v := range filter {
		if ops, ok := v.(map[string]any); ok {
			if len(ops) != 1 {
				return nil, fmt.Errorf("chromem filter: field %q supports only $eq", k)
			}
			eq, ok := ops["$eq"]
			if !ok {
				return nil, fmt.Errorf("chromem filter: field %q supports only $eq", k)
			}
			v = eq
		}
		str, err := metadataString(v)
		if err != nil {
			return nil, fmt.Errorf("chromem filter: field %q: %w", k, err)
		}
		out[k] = str
	}
	return out, nil
}

func metadataString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

func encodeMetadata(in map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(in)+1)
	var jsonKeys []string
	for k, v := range in {
		str, err := metadataString(v)
		if err != nil {
			return nil, err
		}
		if _, isString := v.(string); !isString && v != nil {
			jsonKeys = append(jsonKeys, k)
		}
		out[k] = str
	}
	if len(jsonKeys) > 0 {
		raw, _ := json.Marshal(jsonKeys)
		out[jsonKeysKey] = string(raw)
	}
	return out, nil
}

func decodeMetadata(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k != jsonKeysKey {
			out[k] = v
		}
	}
	var jsonKeys []string
	if raw, ok := in[jsonKeysKey]; ok && json.Unmarshal([]byte(raw), &jsonKeys) == nil {
		for _, k := range jsonKeys {
			var val any
			if json.Unmarshal([]byte(in[k]), &val) == nil {
				out[k] = val
			}
		}
	}
	return out
}
