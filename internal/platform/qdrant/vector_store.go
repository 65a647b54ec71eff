package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/platform/ctxutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

const (
	payloadNamespaceKey = "_sb_namespace"
	payloadVectorIDKey  = "_sb_vector_id"
	maxErrorBodyBytes   = 1024
)

// Point IDs must be UUIDs or integers, so vector IDs are hashed into a UUIDv5.
var pointIDSpace = uuid.MustParse("5a0d3c6e-8f0b-4a57-9d0e-2c54b7f1e4a1")

type vectorStore struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// NewVectorStore returns a pinecone.VectorStore backed by a Qdrant collection.
// All namespaces share the collection and are separated by a payload key.
func NewVectorStore(log *logger.Logger, cfg Config) (pinecone.VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	return &vectorStore{
		log:  log.With("service", "QdrantVectorStore"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *vectorStore) EnsureIndex(ctx context.Context, dim int) error {
	const op = "ensure_index"
	if dim <= 0 {
		return opErr(op, OperationErrorValidation, "dimension must be > 0", nil)
	}
	if err := s.ready(ctx); err != nil {
		return err
	}

	var info collectionInfo
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	switch {
	case err == nil:
		if size := info.Config.Params.Vectors.Size; size != 0 && size != dim {
			return opErr(op, OperationErrorDimensionMismatch,
				fmt.Sprintf("collection %q has size %d, embedding model produces %d", s.cfg.Collection, size, dim), nil)
		}
		return nil
	case !IsNotFound(err):
		return err
	}

	s.log.Info("Creating qdrant collection", "collection", s.cfg.Collection, "dimension", dim)
	create := map[string]any{"vectors": map[string]any{"size": dim, "distance": "Cosine"}}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), create, nil); err != nil {
		return err
	}
	for _, field := range []string{payloadNamespaceKey, "userId", "docId"} {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), idx, nil); err != nil {
			s.log.Warn("qdrant payload index create failed", "field", field, "error", err)
		}
	}
	return nil
}

func (s *vectorStore) ready(ctx context.Context) error {
	const op = "ready"
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.cfg.URL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	s.authorize(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{Code: OperationErrorRequestFailed, Operation: op, StatusCode: resp.StatusCode}
	}
	return nil
}

func (s *vectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	const op = "upsert"
	if len(vectors) == 0 {
		return nil
	}
	ns := s.qualifyNamespace(namespace)
	points := make([]map[string]any, 0, len(vectors))
	for _, v := range vectors {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if len(v.Values) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("vector %q has empty values", id), nil)
		}
		payload := make(map[string]any, len(v.Metadata)+2)
		for k, val := range v.Metadata {
			payload[k] = val
		}
		payload[payloadNamespaceKey] = ns
		payload[payloadVectorIDKey] = id
		points = append(points, map[string]any{
			"id":      pointID(ns, id),
			"vector":  v.Values,
			"payload": payload,
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *vectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.VectorMatch, error) {
	const op = "query"
	if len(q) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if topK <= 0 {
		topK = 10
	}
	ns := s.qualifyNamespace(namespace)
	where := clauses{Must: []any{matchValue(payloadNamespaceKey, ns)}}
	if len(filter) > 0 {
		translated, err := translateFilter(filter)
		if err != nil {
			return nil, err
		}
		where.merge(translated)
	}

	req := map[string]any{
		"vector":       q,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       where.asMap(),
	}
	var points []scoredPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &points); err != nil {
		return nil, err
	}

	out := make([]pinecone.VectorMatch, 0, len(points))
	for _, p := range points {
		id, _ := p.Payload[payloadVectorIDKey].(string)
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		meta := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			if k != payloadNamespaceKey && k != payloadVectorIDKey {
				meta[k] = v
			}
		}
		out = append(out, pinecone.VectorMatch{ID: id, Score: p.Score, Metadata: meta})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *vectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	const op = "delete"
	ns := s.qualifyNamespace(namespace)
	seen := make(map[string]struct{}, len(ids))
	points := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		pid := pointID(ns, id)
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		points = append(points, pid)
	}
	if len(points) == 0 {
		return nil
	}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), map[string]any{"points": points}, nil)
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.cfg.URL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    truncateBody(raw),
		}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope failed", err)
	}
	if msg := envelopeError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorRequestFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result failed", err)
	}
	return nil
}

func (s *vectorStore) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

// envelopeError returns "" for status "ok" and the error text for {"error": "..."}.
func envelopeError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var status string
	if json.Unmarshal(raw, &status) == nil {
		if strings.EqualFold(status, "ok") {
			return ""
		}
		return "status=" + status
	}
	var obj struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Error != "" {
		return obj.Error
	}
	return "status=" + string(raw)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *vectorStore) qualifyNamespace(namespace string) string {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return s.cfg.NamespacePrefix
	}
	return s.cfg.NamespacePrefix + ":" + ns
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func pointID(ns, vectorID string) string {
	return uuid.NewSHA1(pointIDSpace, []byte(ns+"|"+vectorID)).String()
}
