package steps

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	domainjobs "github.com/yungbote/secondbrain-backend/internal/domain/jobs"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/vectorid"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
)

func ingestForDelete(t *testing.T, h *harness, userID uuid.UUID) IngestDocumentOutput {
	t.Helper()
	text := sentences(90) + "\n\n" + sentences(90)
	out, err := IngestDocument(context.Background(), h.ingestDeps(t), IngestDocumentInput{UserID: userID, Title: "t", Text: text})
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	return out
}

func TestDeleteDocumentRemovesDocumentAndVectors(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	in := ingestForDelete(t, h, userID)

	if err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: userID, DocumentID: in.DocumentID}); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	ok, _ := h.docs.Exists(dbctx.Context{Ctx: context.Background()}, in.DocumentID)
	if ok {
		t.Fatalf("document still exists")
	}
	if h.store.count() != 0 {
		t.Fatalf("vectors left: %d", h.store.count())
	}
	want, _ := vectorid.Range(userID.String(), in.DocumentID.String(), in.ChunkCount)
	if len(h.store.deleted) != 1 || !reflect.DeepEqual(h.store.deleted[0], want) {
		t.Fatalf("deleted ids: want %v got %v", want, h.store.deleted)
	}

	run, kinds := h.sagaFor(t, in.DocumentID)
	if run.Status != domainjobs.SagaStatusSucceeded {
		t.Fatalf("saga status: want=%s got=%s", domainjobs.SagaStatusSucceeded, run.Status)
	}
	wantKinds := []string{
		domainjobs.StepDocumentDeletedUncommitted,
		domainjobs.StepVectorIDsTargeted,
		domainjobs.StepVectorDeleteSucceeded,
		domainjobs.StepCommitted,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("saga steps: want=%v got=%v", wantKinds, kinds)
	}
}

func TestDeleteDocumentRollsBackOnVectorFailure(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	in := ingestForDelete(t, h, userID)
	before := h.store.count()
	h.store.deleteErr = errors.New("vector store down")

	err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: userID, DocumentID: in.DocumentID})
	if !errors.Is(err, apperr.ErrCrossStoreInconsistency) {
		t.Fatalf("err: want ErrCrossStoreInconsistency, got %v", err)
	}
	doc, gerr := h.docs.GetByIDForUser(dbctx.Context{Ctx: context.Background()}, userID, in.DocumentID)
	if gerr != nil || doc == nil || doc.ChunkCount != in.ChunkCount {
		t.Fatalf("document must be restored: doc=%+v err=%v", doc, gerr)
	}
	if h.store.count() != before {
		t.Fatalf("vectors: want=%d got=%d", before, h.store.count())
	}

	run, kinds := h.sagaFor(t, in.DocumentID)
	if run.Status != domainjobs.SagaStatusCompensated {
		t.Fatalf("saga status: want=%s got=%s", domainjobs.SagaStatusCompensated, run.Status)
	}
	wantKinds := []string{
		domainjobs.StepDocumentDeletedUncommitted,
		domainjobs.StepVectorIDsTargeted,
		domainjobs.StepVectorDeleteFailed,
		domainjobs.StepRolledBack,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("saga steps: want=%v got=%v", wantKinds, kinds)
	}

	// A retry after the outage completes the delete.
	h.store.deleteErr = nil
	if err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: userID, DocumentID: in.DocumentID}); err != nil {
		t.Fatalf("retry DeleteDocument: %v", err)
	}
	if h.store.count() != 0 {
		t.Fatalf("vectors left after retry: %d", h.store.count())
	}
}

func TestDeleteDocumentNotOwned(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	in := ingestForDelete(t, h, owner)

	err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: uuid.New(), DocumentID: in.DocumentID})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err: want ErrNotFound, got %v", err)
	}
	ok, _ := h.docs.Exists(dbctx.Context{Ctx: context.Background()}, in.DocumentID)
	if !ok || len(h.store.deleted) != 0 {
		t.Fatalf("foreign delete must not change state: exists=%v deletes=%d", ok, len(h.store.deleted))
	}
	run, kinds := h.sagaFor(t, in.DocumentID)
	if run.Status != domainjobs.SagaStatusFailed || !reflect.DeepEqual(kinds, []string{domainjobs.StepDocumentMissing}) {
		t.Fatalf("saga: status=%s steps=%v", run.Status, kinds)
	}
}

func TestDeleteDocumentBusy(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	in := ingestForDelete(t, h, userID)

	release, err := h.locks.Acquire(context.Background(), in.DocumentID.String())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	start := time.Now()
	err = DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: userID, DocumentID: in.DocumentID})
	if !errors.Is(err, apperr.ErrDocumentBusy) {
		t.Fatalf("err: want ErrDocumentBusy, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("busy delete waited too long")
	}
	ok, _ := h.docs.Exists(dbctx.Context{Ctx: context.Background()}, in.DocumentID)
	if !ok {
		t.Fatalf("busy delete must not remove the document")
	}
}

func TestDeleteDocumentValidation(t *testing.T) {
	h := newHarness(t)
	err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: uuid.New()})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err: want validation error, got %v", err)
	}
}

func TestDeleteDocumentRestoresPartiallyDeletedVectors(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	in := ingestForDelete(t, h, userID)
	if in.ChunkCount < 3 {
		t.Fatalf("setup: want>=3 chunks got=%d", in.ChunkCount)
	}
	h.store.mu.Lock()
	before := make(map[string]string, len(h.store.vectors))
	for id, v := range h.store.vectors {
		before[id] = v.Metadata[MetaPreview].(string)
	}
	h.store.partialAfter = 2
	h.store.mu.Unlock()

	err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: userID, DocumentID: in.DocumentID})
	if !errors.Is(err, apperr.ErrCrossStoreInconsistency) {
		t.Fatalf("err: want ErrCrossStoreInconsistency, got %v", err)
	}
	ok, _ := h.docs.Exists(dbctx.Context{Ctx: context.Background()}, in.DocumentID)
	if !ok {
		t.Fatalf("document must be restored")
	}
	h.store.mu.Lock()
	after := make(map[string]string, len(h.store.vectors))
	for id, v := range h.store.vectors {
		after[id] = v.Metadata[MetaPreview].(string)
	}
	h.store.mu.Unlock()
	if !reflect.DeepEqual(after, before) {
		t.Fatalf("vectors: want %d unchanged ids, got %d", len(before), len(after))
	}

	run, kinds := h.sagaFor(t, in.DocumentID)
	if run.Status != domainjobs.SagaStatusCompensated {
		t.Fatalf("saga status: want=%s got=%s", domainjobs.SagaStatusCompensated, run.Status)
	}
	wantKinds := []string{
		domainjobs.StepDocumentDeletedUncommitted,
		domainjobs.StepVectorIDsTargeted,
		domainjobs.StepVectorDeleteFailed,
		domainjobs.StepVectorDeletePartial,
		domainjobs.StepVectorsRestored,
		domainjobs.StepRolledBack,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("saga steps: want=%v got=%v", wantKinds, kinds)
	}
}

func TestDeleteDocumentRecordsFailedRestore(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	in := ingestForDelete(t, h, userID)
	h.store.partialAfter = 1
	h.emb.failAt[-1] = true

	err := DeleteDocument(context.Background(), h.deleteDeps(t), DeleteDocumentInput{UserID: userID, DocumentID: in.DocumentID})
	if !errors.Is(err, apperr.ErrCrossStoreInconsistency) {
		t.Fatalf("err: want ErrCrossStoreInconsistency, got %v", err)
	}
	run, kinds := h.sagaFor(t, in.DocumentID)
	if run.Status != domainjobs.SagaStatusFailed {
		t.Fatalf("saga status: want=%s got=%s", domainjobs.SagaStatusFailed, run.Status)
	}
	if len(kinds) < 5 || kinds[3] != domainjobs.StepVectorDeletePartial || kinds[4] != domainjobs.StepVectorRestoreFailed {
		t.Fatalf("saga steps: got=%v", kinds)
	}
}
