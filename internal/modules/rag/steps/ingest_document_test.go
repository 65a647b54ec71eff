package steps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/modules/rag/vectorid"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
)

func TestIngestShortTextYieldsOneVector(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	text := strings.Repeat("a", 1500)

	out, err := IngestDocument(ctx, h.ingestDeps(t), IngestDocumentInput{UserID: userID, Title: "Note", Text: text, Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if out.ChunkCount != 1 {
		t.Fatalf("ChunkCount: want=1 got=%d", out.ChunkCount)
	}
	id, _ := vectorid.Encode(userID.String(), out.DocumentID.String(), 0)
	h.store.mu.Lock()
	v, ok := h.store.vectors[id]
	h.store.mu.Unlock()
	if !ok || h.store.count() != 1 {
		t.Fatalf("vectors: want exactly %s, got %d vectors", id, h.store.count())
	}
	if got := v.Metadata[MetaPreview].(string); len(got) != DefaultPreviewMaxChars {
		t.Fatalf("preview length: want=%d got=%d", DefaultPreviewMaxChars, len(got))
	}
	if v.Metadata[MetaUserID] != userID.String() || v.Metadata[MetaChunkIndex] != 0 {
		t.Fatalf("metadata: unexpected %+v", v.Metadata)
	}

	doc, err := h.docs.GetByIDForUser(dbctx.Context{Ctx: ctx}, userID, out.DocumentID)
	if err != nil || doc == nil {
		t.Fatalf("GetByIDForUser: doc=%v err=%v", doc, err)
	}
	if doc.ChunkCount != 1 || doc.Text != text {
		t.Fatalf("stored doc: chunkCount=%d textLen=%d", doc.ChunkCount, len(doc.Text))
	}
}

func TestIngestLongParagraphsChunkWithinBudget(t *testing.T) {
	h := newHarness(t)
	para := sentences(90) // about 2500 characters
	text := para + "\n\n" + para + "\n\n" + para

	out, err := IngestDocument(context.Background(), h.ingestDeps(t), IngestDocumentInput{UserID: uuid.New(), Text: text})
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if out.ChunkCount < 3 {
		t.Fatalf("ChunkCount: want>=3 got=%d", out.ChunkCount)
	}
	if h.store.count() != out.ChunkCount || h.store.upserts != 1 {
		t.Fatalf("upsert: want %d vectors in one batch, got %d vectors in %d calls", out.ChunkCount, h.store.count(), h.store.upserts)
	}
	for id, v := range h.store.vectors {
		if n := len([]rune(v.Metadata[MetaPreview].(string))); n > DefaultPreviewMaxChars {
			t.Fatalf("%s: preview too long: %d", id, n)
		}
	}
}

func TestIngestKeepsChunkIndexAcrossPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.emb.failAt[1] = true
	userID := uuid.New()
	text := sentences(90) + "\n\n" + sentences(90) + "\n\n" + sentences(90)

	out, err := IngestDocument(context.Background(), h.ingestDeps(t), IngestDocumentInput{UserID: userID, Text: text})
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if h.store.count() != out.ChunkCount-1 {
		t.Fatalf("vectors: want=%d got=%d", out.ChunkCount-1, h.store.count())
	}
	missing, _ := vectorid.Encode(userID.String(), out.DocumentID.String(), 1)
	if _, ok := h.store.vectors[missing]; ok {
		t.Fatalf("failed chunk must not be upserted")
	}
	last, _ := vectorid.Encode(userID.String(), out.DocumentID.String(), out.ChunkCount-1)
	if v, ok := h.store.vectors[last]; !ok || v.Metadata[MetaChunkIndex] != out.ChunkCount-1 {
		t.Fatalf("last chunk: want index %d, got %+v", out.ChunkCount-1, v.Metadata)
	}
}

func TestIngestWithoutVectorsKeepsDocument(t *testing.T) {
	h := newHarness(t)
	h.emb.failAt[-1] = true
	userID := uuid.New()

	out, err := IngestDocument(context.Background(), h.ingestDeps(t), IngestDocumentInput{UserID: userID, Text: "hello"})
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if out.ChunkCount != 0 || out.DocumentID == uuid.Nil {
		t.Fatalf("out: want vector-less document, got %+v", out)
	}
	if h.store.upserts != 0 {
		t.Fatalf("upserts: want=0 got=%d", h.store.upserts)
	}
	ok, err := h.docs.Exists(dbctx.Context{Ctx: context.Background()}, out.DocumentID)
	if err != nil || !ok {
		t.Fatalf("document must be kept: ok=%v err=%v", ok, err)
	}
}

func TestIngestUpsertFailureNamesVectorStore(t *testing.T) {
	h := newHarness(t)
	h.store.upsertErr = errors.New("down")
	userID := uuid.New()

	out, err := IngestDocument(context.Background(), h.ingestDeps(t), IngestDocumentInput{UserID: userID, Text: "hello"})
	if apperr.ExternalService(err) != apperr.ServiceVectorStore {
		t.Fatalf("err: want vector_store outage, got %v", err)
	}
	doc, _ := h.docs.GetByIDForUser(dbctx.Context{Ctx: context.Background()}, userID, out.DocumentID)
	if doc == nil || doc.ChunkCount != 1 {
		t.Fatalf("document must keep its chunk count after a failed upsert: %+v", doc)
	}
}

func TestIngestValidatesBeforeExternalCalls(t *testing.T) {
	h := newHarness(t)
	cases := []IngestDocumentInput{
		{UserID: uuid.Nil, Text: "x"},
		{UserID: uuid.New(), Text: "   "},
	}
	for _, in := range cases {
		_, err := IngestDocument(context.Background(), h.ingestDeps(t), in)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%+v: want validation error, got %v", in, err)
		}
	}
	if h.emb.calls != 0 {
		t.Fatalf("embedder calls: want=0 got=%d", h.emb.calls)
	}
}

func TestIngestSameTextTwiceCreatesSeparateDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	in := IngestDocumentInput{UserID: userID, Title: "dup", Text: "same"}

	first, err := IngestDocument(ctx, h.ingestDeps(t), in)
	if err != nil {
		t.Fatalf("first IngestDocument: %v", err)
	}
	second, err := IngestDocument(ctx, h.ingestDeps(t), in)
	if err != nil {
		t.Fatalf("second IngestDocument: %v", err)
	}
	if first.DocumentID == second.DocumentID {
		t.Fatalf("docIds: want distinct got=%s twice", first.DocumentID)
	}
	if h.store.count() != 2 {
		t.Fatalf("vectors: want=2 got=%d", h.store.count())
	}
	for _, out := range []IngestDocumentOutput{first, second} {
		id, _ := vectorid.Encode(userID.String(), out.DocumentID.String(), 0)
		h.store.mu.Lock()
		_, ok := h.store.vectors[id]
		h.store.mu.Unlock()
		if !ok {
			t.Fatalf("vector %s missing", id)
		}
		doc, err := h.docs.GetByIDForUser(dbctx.Context{Ctx: ctx}, userID, out.DocumentID)
		if err != nil || doc == nil {
			t.Fatalf("GetByIDForUser(%s): doc=%v err=%v", out.DocumentID, doc, err)
		}
	}
}
