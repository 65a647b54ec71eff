package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type fakePinecone struct {
	mu        sync.Mutex
	dimension int
	exists    bool
	upserts   []UpsertRequest
	queries   []QueryRequest
	deletes   []DeleteRequest
	host      string
	// failDeleteAfter rejects delete batches once that many have succeeded.
	failDeleteAfter int
}

func (f *fakePinecone) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("Api-Key") != "test-key" {
			t.Errorf("missing Api-Key header")
		}
		raw, _ := io.ReadAll(r.Body)
		switch {
		case r.Method == "GET" && r.URL.Path == "/indexes/notes":
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"error":{"code":"NOT_FOUND"}}`)
				return
			}
			fmt.Fprintf(w, `{"name":"notes","host":%q,"dimension":%d,"status":{"ready":true,"state":"Ready"}}`, f.host, f.dimension)
		case r.Method == "POST" && r.URL.Path == "/indexes":
			var req CreateIndexRequest
			_ = json.Unmarshal(raw, &req)
			f.exists = true
			f.dimension = req.Dimension
			fmt.Fprintf(w, `{"name":"notes","host":%q,"dimension":%d,"status":{"ready":true,"state":"Ready"}}`, f.host, f.dimension)
		case r.URL.Path == "/vectors/upsert":
			var req UpsertRequest
			_ = json.Unmarshal(raw, &req)
			f.upserts = append(f.upserts, req)
			fmt.Fprintf(w, `{"upsertedCount":%d}`, len(req.Vectors))
		case r.URL.Path == "/query":
			var req QueryRequest
			_ = json.Unmarshal(raw, &req)
			f.queries = append(f.queries, req)
			_, _ = io.WriteString(w, `{"matches":[{"id":"u::d::0","score":0.9,"metadata":{"userId":"u","preview":"p"}},{"id":"","score":0.1}]}`)
		case r.URL.Path == "/vectors/delete":
			if f.failDeleteAfter > 0 && len(f.deletes) >= f.failDeleteAfter {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":"INVALID_ARGUMENT"}}`)
				return
			}
			var req DeleteRequest
			_ = json.Unmarshal(raw, &req)
			f.deletes = append(f.deletes, req)
			_, _ = io.WriteString(w, `{}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}
}

func newTestStore(t *testing.T, f *fakePinecone) VectorStore {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	f.host = srv.URL

	log := logger.Nop()
	pc, err := New(log, Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vs, err := NewVectorStore(log, pc, StoreConfig{IndexName: "notes"})
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	return vs
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	f := &fakePinecone{}
	vs := newTestStore(t, f)

	if err := vs.EnsureIndex(context.Background(), 8); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists || f.dimension != 8 {
		t.Fatalf("index not created: exists=%v dim=%d", f.exists, f.dimension)
	}
}

func TestEnsureIndexRejectsDimensionMismatch(t *testing.T) {
	f := &fakePinecone{exists: true, dimension: 1536}
	vs := newTestStore(t, f)

	err := vs.EnsureIndex(context.Background(), 8)
	if err == nil || !strings.Contains(err.Error(), "dimension 1536") {
		t.Fatalf("EnsureIndex: want dimension mismatch error, got %v", err)
	}
}

func TestUpsertQueryDeleteUseQualifiedNamespace(t *testing.T) {
	f := &fakePinecone{exists: true, dimension: 2}
	vs := newTestStore(t, f)
	ctx := context.Background()
	if err := vs.EnsureIndex(ctx, 2); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	if err := vs.Upsert(ctx, "", []Vector{{ID: "u::d::0", Values: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := vs.QueryMatches(ctx, "", []float32{1, 0}, 5, map[string]any{"userId": map[string]any{"$eq": "u"}})
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "u::d::0" || matches[0].Metadata["preview"] != "p" {
		t.Fatalf("QueryMatches: unexpected %+v", matches)
	}

	ids := make([]string, 1500)
	for i := range ids {
		ids[i] = fmt.Sprintf("u::d::%d", i)
	}
	if err := vs.DeleteIDs(ctx, "", ids); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserts[0].Namespace != "sb" {
		t.Fatalf("namespace: want=sb got=%q", f.upserts[0].Namespace)
	}
	if !f.queries[0].IncludeMetadata {
		t.Fatalf("query must request metadata")
	}
	if len(f.deletes) != 2 || len(f.deletes[0].IDs) != 1000 || len(f.deletes[1].IDs) != 500 {
		t.Fatalf("deletes: want batches 1000+500, got %d batches", len(f.deletes))
	}
}

func TestQueryBeforeEnsureIndexFails(t *testing.T) {
	log := logger.Nop()
	pc, _ := New(log, Config{APIKey: "k"})
	vs, _ := NewVectorStore(log, pc, StoreConfig{IndexName: "notes"})
	if _, err := vs.QueryMatches(context.Background(), "", []float32{1}, 1, nil); err == nil {
		t.Fatalf("QueryMatches without host: want error")
	}
}

func TestDeleteIDsReportsPartialDelete(t *testing.T) {
	f := &fakePinecone{exists: true, dimension: 2, failDeleteAfter: 1}
	vs := newTestStore(t, f)
	ctx := context.Background()
	if err := vs.EnsureIndex(ctx, 2); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	ids := make([]string, 1500)
	for i := range ids {
		ids[i] = fmt.Sprintf("u::d::%d", i)
	}

	err := vs.DeleteIDs(ctx, "", ids)
	var partial *PartialDeleteError
	if !errors.As(err, &partial) {
		t.Fatalf("DeleteIDs: want *PartialDeleteError got=%v", err)
	}
	if len(partial.Deleted) != 1000 || partial.Deleted[0] != "u::d::0" || partial.Deleted[999] != "u::d::999" {
		t.Fatalf("deleted: want first 1000 ids, got %d", len(partial.Deleted))
	}

	f.mu.Lock()
	f.failDeleteAfter = 1
	f.deletes = []DeleteRequest{{}}
	f.mu.Unlock()
	err = vs.DeleteIDs(ctx, "", ids[:10])
	if err == nil || errors.As(err, &partial) {
		t.Fatalf("first batch failure: want plain error got=%v", err)
	}
}
