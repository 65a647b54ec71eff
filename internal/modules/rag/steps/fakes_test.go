package steps

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/testutil"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/chunking"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/embedding"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/index"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

type fakeEmbedder struct {
	mu       sync.Mutex
	failAt   map[int]bool
	queryErr error
	calls    int
}

func (f *fakeEmbedder) EmbedAll(ctx context.Context, texts []string) []embedding.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]embedding.Result, len(texts))
	for i := range texts {
		out[i].Index = i
		if f.failAt[i] || f.failAt[-1] {
			out[i].Err = errors.New("embed failed")
			continue
		}
		out[i].Vector = []float32{1, float32(i), 0}
	}
	return out
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{1, 0, 0}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	vectors   map[string]pinecone.Vector
	upserts   int
	deleted   [][]string
	deleteErr error
	upsertErr error
	// partialAfter makes DeleteIDs remove only that many ids, then fail.
	partialAfter int
	matches   []pinecone.VectorMatch
	filters   []map[string]any
}

func newFakeStore() *fakeStore { return &fakeStore{vectors: map[string]pinecone.Vector{}} }

func (f *fakeStore) EnsureIndex(ctx context.Context, dim int) error { return nil }

func (f *fakeStore) Upsert(ctx context.Context, ns string, vectors []pinecone.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	for _, v := range vectors {
		f.vectors[v.ID] = v
	}
	return nil
}

func (f *fakeStore) QueryMatches(ctx context.Context, ns string, q []float32, topK int, filter map[string]any) ([]pinecone.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	out := f.matches
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeStore) DeleteIDs(ctx context.Context, ns string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partialAfter > 0 && f.partialAfter < len(ids) {
		done := append([]string(nil), ids[:f.partialAfter]...)
		for _, id := range done {
			delete(f.vectors, id)
		}
		return &pinecone.PartialDeleteError{Deleted: done, Err: errors.New("batch rejected")}
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, append([]string(nil), ids...))
	for _, id := range ids {
		delete(f.vectors, id)
	}
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

type fakeGenerator struct {
	calls  int
	system string
	user   string
	answer string
	err    error
}

func (f *fakeGenerator) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.answer, f.err
}

type harness struct {
	db     *gorm.DB
	sagaDB *gorm.DB
	docs   repos.DocumentRepo
	saga   services.SagaService
	store  *fakeStore
	emb    *fakeEmbedder
	locks  doclock.Locker
	handle *index.Handle
}

// newHarness keeps the step log in its own SQLite file so step writes never
// wait on the document transaction.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.SQLite(t)
	sagaDB := testutil.SQLite(t)
	store := newFakeStore()
	docs := repos.NewDocumentRepo(db, log)
	return &harness{
		db:     db,
		sagaDB: sagaDB,
		docs:   docs,
		saga:   services.NewSagaService(log, repos.NewSagaRunRepo(sagaDB, log), repos.NewSagaStepRepo(sagaDB, log), docs, store),
		store:  store,
		emb:    &fakeEmbedder{failAt: map[int]bool{}},
		locks:  doclock.NewLocal(doclock.Config{Wait: 50 * time.Millisecond}),
		handle: &index.Handle{Dim: 3, Store: store},
	}
}

func (h *harness) ingestDeps(t *testing.T) IngestDocumentDeps {
	return IngestDocumentDeps{
		DB:       h.db,
		Log:      testutil.Logger(t),
		Docs:     h.docs,
		Chunker:  chunking.New(500),
		Embedder: h.emb,
		Index:    h.handle,
		Locks:    h.locks,
	}
}

func (h *harness) retrieveDeps(t *testing.T) RetrieveContextDeps {
	return RetrieveContextDeps{
		DB:       h.db,
		Log:      testutil.Logger(t),
		Docs:     h.docs,
		Embedder: h.emb,
		Index:    h.handle,
	}
}

func (h *harness) deleteDeps(t *testing.T) DeleteDocumentDeps {
	return DeleteDocumentDeps{
		DB:       h.db,
		Log:      testutil.Logger(t),
		Docs:     h.docs,
		Saga:     h.saga,
		Index:    h.handle,
		Locks:    h.locks,
		Chunker:  chunking.New(500),
		Embedder: h.emb,
	}
}

func (h *harness) seedDoc(t *testing.T, userID uuid.UUID, title, text string, chunkCount int) *types.Document {
	t.Helper()
	doc := &types.Document{UserID: userID, Title: title, Text: text, ChunkCount: chunkCount}
	if _, err := h.docs.Create(dbctx.Context{Ctx: context.Background()}, []*types.Document{doc}); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func (h *harness) sagaFor(t *testing.T, docID uuid.UUID) (*types.SagaRun, []string) {
	t.Helper()
	var run types.SagaRun
	if err := h.sagaDB.Where("document_id = ?", docID).First(&run).Error; err != nil {
		t.Fatalf("load saga run: %v", err)
	}
	rows, err := h.saga.Steps(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("load saga steps: %v", err)
	}
	kinds := make([]string, 0, len(rows))
	for _, r := range rows {
		kinds = append(kinds, r.Kind)
	}
	return &run, kinds
}

func sentences(n int) string {
	return strings.Repeat("Lorem ipsum dolor sit amet. ", n)
}
