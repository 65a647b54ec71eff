package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	domainjobs "github.com/yungbote/secondbrain-backend/internal/domain/jobs"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/chunking"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/embedding"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/index"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/vectorid"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

type DeleteDocumentDeps struct {
	DB    *gorm.DB
	Log   *logger.Logger
	Docs  repos.DocumentRepo
	Saga  services.SagaService
	Index *index.Handle
	Locks doclock.Locker

	// Chunker and Embedder rebuild vectors removed by a partial delete.
	Chunker         chunking.Chunker
	Embedder        Embedder
	PreviewMaxChars int
}

type DeleteDocumentInput struct {
	UserID     uuid.UUID
	DocumentID uuid.UUID
}

// DeleteDocument removes a document and its vectors as one unit. The document
// delete stays uncommitted until the vector delete succeeds; a vector failure
// rolls it back and returns ErrCrossStoreInconsistency. Vectors already removed
// by a partial delete are re-embedded and upserted before the rollback.
func DeleteDocument(ctx context.Context, deps DeleteDocumentDeps, in DeleteDocumentInput) (err error) {
	ctx, span := observability.StartSpan(ctx, "rag.delete_document")
	defer func() { observability.EndSpan(span, err) }()

	if in.UserID == uuid.Nil {
		return apperr.Validation("userId is required")
	}
	if in.DocumentID == uuid.Nil {
		return apperr.Validation("document id is required")
	}
	if deps.DB == nil || deps.Log == nil || deps.Docs == nil || deps.Saga == nil || deps.Index == nil || deps.Locks == nil {
		return apperr.Validation("delete: missing deps")
	}
	log := deps.Log.With("step", "delete_document", "document_id", in.DocumentID.String())
	span.SetAttributes(attribute.String("rag.document_id", in.DocumentID.String()))

	release, err := deps.Locks.Acquire(ctx, in.DocumentID.String())
	if err != nil {
		return lockError(err)
	}
	defer release()

	sagaID, err := deps.Saga.Begin(ctx, in.UserID, domainjobs.SagaKindDocumentDelete, in.DocumentID)
	if err != nil {
		log.Warn("saga begin failed; continuing without step log", "error", err)
	}
	s := &sagaLog{ctx: ctx, saga: deps.Saga, id: sagaID, log: log}

	tx := deps.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.finish(domainjobs.SagaStatusFailed)
		return apperr.External(apperr.ServiceDocumentStore, tx.Error)
	}
	finished := false
	defer func() {
		if !finished {
			tx.Rollback()
		}
	}()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	doc, err := deps.Docs.LockByIDForUser(dbc, in.UserID, in.DocumentID)
	if err != nil {
		s.finish(domainjobs.SagaStatusFailed)
		return apperr.External(apperr.ServiceDocumentStore, err)
	}
	if doc == nil {
		s.step(domainjobs.StepDocumentMissing, domainjobs.SagaStepStatusDone, nil)
		s.finish(domainjobs.SagaStatusFailed)
		return apperr.ErrNotFound
	}

	if _, err := deps.Docs.DeleteByIDForUser(dbc, in.UserID, in.DocumentID); err != nil {
		s.finish(domainjobs.SagaStatusFailed)
		return apperr.External(apperr.ServiceDocumentStore, err)
	}
	s.step(domainjobs.StepDocumentDeletedUncommitted, domainjobs.SagaStepStatusDone, map[string]any{"chunk_count": doc.ChunkCount})

	ids, err := vectorid.Range(in.UserID.String(), in.DocumentID.String(), doc.ChunkCount)
	if err != nil {
		s.finish(domainjobs.SagaStatusFailed)
		return err
	}
	s.step(domainjobs.StepVectorIDsTargeted, domainjobs.SagaStepStatusDone, services.VectorIDsPayload{
		Namespace: deps.Index.Namespace,
		IDs:       ids,
	})

	if err := deps.Index.Store.DeleteIDs(ctx, deps.Index.Namespace, ids); err != nil {
		log.Warn("vector delete failed; rolling back document delete", "vector_ids", len(ids), "error", err)
		s.step(domainjobs.StepVectorDeleteFailed, domainjobs.SagaStepStatusFailed, map[string]any{"error": err.Error()})
		status := domainjobs.SagaStatusCompensated
		var partial *pinecone.PartialDeleteError
		if errors.As(err, &partial) && len(partial.Deleted) > 0 {
			s.step(domainjobs.StepVectorDeletePartial, domainjobs.SagaStepStatusDone, services.VectorIDsPayload{
				Namespace: deps.Index.Namespace,
				IDs:       partial.Deleted,
			})
			if rErr := restoreVectors(ctx, deps, doc, partial.Deleted); rErr != nil {
				log.Error("restoring partially deleted vectors failed", "vector_ids", len(partial.Deleted), "error", rErr)
				s.step(domainjobs.StepVectorRestoreFailed, domainjobs.SagaStepStatusFailed, map[string]any{"error": rErr.Error()})
				status = domainjobs.SagaStatusFailed
			} else {
				s.step(domainjobs.StepVectorsRestored, domainjobs.SagaStepStatusDone, map[string]any{"vector_ids": len(partial.Deleted)})
			}
		}
		finished = true
		if rbErr := tx.Rollback().Error; rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
		}
		s.step(domainjobs.StepRolledBack, domainjobs.SagaStepStatusDone, nil)
		s.finish(status)
		return fmt.Errorf("%w: %v", apperr.ErrCrossStoreInconsistency, err)
	}
	s.step(domainjobs.StepVectorDeleteSucceeded, domainjobs.SagaStepStatusDone, map[string]any{"vector_ids": len(ids)})

	finished = true
	if err := tx.Commit().Error; err != nil {
		s.step(domainjobs.StepCommitFailed, domainjobs.SagaStepStatusFailed, map[string]any{"error": err.Error()})
		s.finish(domainjobs.SagaStatusFailed)
		return apperr.External(apperr.ServiceDocumentStore, err)
	}
	s.step(domainjobs.StepCommitted, domainjobs.SagaStepStatusDone, nil)
	s.finish(domainjobs.SagaStatusSucceeded)
	log.Debug("document deleted", "vector_ids", len(ids))
	return nil
}

// restoreVectors re-embeds the chunks behind ids and upserts them again.
func restoreVectors(ctx context.Context, deps DeleteDocumentDeps, doc *types.Document, ids []string) error {
	if deps.Embedder == nil {
		return fmt.Errorf("restore: embedder required")
	}
	chunks := deps.Chunker.Split(doc.Text)
	positions := make([]int, 0, len(ids))
	texts := make([]string, 0, len(ids))
	for _, id := range ids {
		key, err := vectorid.Decode(id)
		if err != nil {
			return err
		}
		// Ids past the current chunking were never written.
		if key.N >= len(chunks) {
			continue
		}
		positions = append(positions, key.N)
		texts = append(texts, chunks[key.N])
	}
	if len(texts) == 0 {
		return nil
	}
	results := deps.Embedder.EmbedAll(ctx, texts)
	vectors := make([]embedding.Result, 0, len(results))
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			continue
		}
		r.Index = positions[r.Index]
		vectors = append(vectors, r)
	}
	records, err := chunkRecords(doc, chunks, vectors, deps.PreviewMaxChars)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		if err := deps.Index.Store.Upsert(ctx, deps.Index.Namespace, records); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("restore: %d of %d chunks failed to embed", failed, len(texts))
	}
	return nil
}

// sagaLog writes steps best-effort; a failed write is logged only.
type sagaLog struct {
	ctx  context.Context
	saga services.SagaService
	id   uuid.UUID
	log  *logger.Logger
}

func (s *sagaLog) step(kind, status string, payload any) {
	if s.id == uuid.Nil {
		return
	}
	if err := s.saga.AppendStep(s.ctx, s.id, kind, status, payload); err != nil {
		s.log.Warn("saga step write failed", "saga_id", s.id.String(), "kind", kind, "error", err)
	}
}

func (s *sagaLog) finish(status string) {
	observability.Current().IncSaga(domainjobs.SagaKindDocumentDelete, status)
	if s.id == uuid.Nil {
		return
	}
	if err := s.saga.MarkStatus(s.ctx, s.id, status); err != nil {
		s.log.Warn("saga status write failed", "saga_id", s.id.String(), "status", status, "error", err)
	}
}
