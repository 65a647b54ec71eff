package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	domainjobs "github.com/yungbote/secondbrain-backend/internal/domain/jobs"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

// VectorIDsPayload is the payload of the vector_ids_targeted step.
type VectorIDsPayload struct {
	Namespace string   `json:"namespace"`
	IDs       []string `json:"ids"`
}

// SagaService owns the durable step log of cross-store operations. Its writes
// go through the step-log connection, never through a caller's transaction,
// so they survive a rollback of the document change.
type SagaService interface {
	Begin(ctx context.Context, ownerUserID uuid.UUID, kind string, documentID uuid.UUID) (uuid.UUID, error)
	AppendStep(ctx context.Context, sagaID uuid.UUID, kind string, status string, payload any) error
	MarkStatus(ctx context.Context, sagaID uuid.UUID, status string) error
	Steps(ctx context.Context, sagaID uuid.UUID) ([]*types.SagaStep, error)

	// ReconcileDeletions settles document_delete runs left running for longer
	// than grace, typically after a crash between commit and status update.
	ReconcileDeletions(ctx context.Context, grace time.Duration) (ReconcileResult, error)
}

type ReconcileResult struct {
	Examined    int `json:"examined"`
	Succeeded   int `json:"succeeded"`
	Compensated int `json:"compensated"`
	Failed      int `json:"failed"`
}

type sagaService struct {
	log   *logger.Logger
	runs  repos.SagaRunRepo
	steps repos.SagaStepRepo
	docs  repos.DocumentRepo
	vec   pinecone.VectorStore
}

func NewSagaService(
	baseLog *logger.Logger,
	runs repos.SagaRunRepo,
	steps repos.SagaStepRepo,
	docs repos.DocumentRepo,
	vec pinecone.VectorStore,
) SagaService {
	return &sagaService{
		log:   baseLog.With("service", "SagaService"),
		runs:  runs,
		steps: steps,
		docs:  docs,
		vec:   vec,
	}
}

func (s *sagaService) Begin(ctx context.Context, ownerUserID uuid.UUID, kind string, documentID uuid.UUID) (uuid.UUID, error) {
	if s == nil || s.runs == nil {
		return uuid.Nil, fmt.Errorf("saga service not configured")
	}
	if ownerUserID == uuid.Nil || documentID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("missing saga owner or document id")
	}
	row := &types.SagaRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Kind:        strings.TrimSpace(kind),
		DocumentID:  documentID,
		Status:      domainjobs.SagaStatusRunning,
	}
	if _, err := s.runs.Create(dbctx.Context{Ctx: ctx}, []*types.SagaRun{row}); err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

// AppendStep assigns the next seq; a saga run has a single writer.
func (s *sagaService) AppendStep(ctx context.Context, sagaID uuid.UUID, kind string, status string, payload any) error {
	if s == nil || s.steps == nil {
		return fmt.Errorf("saga service not configured")
	}
	if sagaID == uuid.Nil {
		return fmt.Errorf("missing saga_id")
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("missing saga step kind")
	}
	if status == "" {
		status = domainjobs.SagaStepStatusDone
	}
	dbc := dbctx.Context{Ctx: ctx}
	maxSeq, err := s.steps.GetMaxSeq(dbc, sagaID)
	if err != nil {
		return err
	}
	var raw []byte
	if payload != nil {
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode saga step payload: %w", err)
		}
	}
	row := &types.SagaStep{
		ID:      uuid.New(),
		SagaID:  sagaID,
		Seq:     maxSeq + 1,
		Kind:    kind,
		Payload: datatypes.JSON(raw),
		Status:  status,
	}
	_, err = s.steps.Create(dbc, []*types.SagaStep{row})
	return err
}

func (s *sagaService) MarkStatus(ctx context.Context, sagaID uuid.UUID, status string) error {
	if s == nil || s.runs == nil {
		return fmt.Errorf("saga service not configured")
	}
	if sagaID == uuid.Nil {
		return fmt.Errorf("missing saga_id")
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("missing saga status")
	}
	return s.runs.UpdateFields(dbctx.Context{Ctx: ctx}, sagaID, map[string]interface{}{"status": status})
}

func (s *sagaService) Steps(ctx context.Context, sagaID uuid.UUID) ([]*types.SagaStep, error) {
	if s == nil || s.steps == nil {
		return nil, fmt.Errorf("saga service not configured")
	}
	return s.steps.ListBySagaID(dbctx.Context{Ctx: ctx}, sagaID)
}

func (s *sagaService) ReconcileDeletions(ctx context.Context, grace time.Duration) (ReconcileResult, error) {
	var res ReconcileResult
	if s == nil || s.runs == nil || s.steps == nil || s.docs == nil || s.vec == nil {
		return res, fmt.Errorf("saga service not configured")
	}
	if grace < 0 {
		grace = 0
	}
	before := time.Now().UTC().Add(-grace)
	runs, err := s.runs.ListByStatusBefore(dbctx.Context{Ctx: ctx}, []string{domainjobs.SagaStatusRunning}, before, 500)
	if err != nil {
		return res, err
	}
	for _, run := range runs {
		if run == nil || run.Kind != domainjobs.SagaKindDocumentDelete {
			continue
		}
		res.Examined++
		status, rerr := s.reconcileOne(ctx, run)
		if rerr != nil {
			s.log.Warn("saga reconcile failed", "saga_id", run.ID.String(), "document_id", run.DocumentID.String(), "error", rerr)
			res.Failed++
			continue
		}
		switch status {
		case domainjobs.SagaStatusSucceeded:
			res.Succeeded++
		case domainjobs.SagaStatusCompensated:
			res.Compensated++
		}
	}
	if res.Examined > 0 {
		s.log.Info("saga reconcile finished",
			"examined", res.Examined,
			"succeeded", res.Succeeded,
			"compensated", res.Compensated,
			"failed", res.Failed,
		)
	}
	return res, nil
}

func (s *sagaService) reconcileOne(ctx context.Context, run *types.SagaRun) (string, error) {
	exists, err := s.docs.Exists(dbctx.Context{Ctx: ctx}, run.DocumentID)
	if err != nil {
		return "", err
	}
	if exists {
		// The transaction never committed, so the document and its vectors are intact.
		_ = s.AppendStep(ctx, run.ID, domainjobs.StepReconciled, domainjobs.SagaStepStatusDone, map[string]any{"outcome": "document_present"})
		if err := s.MarkStatus(ctx, run.ID, domainjobs.SagaStatusCompensated); err != nil {
			return "", err
		}
		observability.Current().IncSaga(run.Kind, domainjobs.SagaStatusCompensated)
		return domainjobs.SagaStatusCompensated, nil
	}

	step, err := s.steps.GetLatestByKind(dbctx.Context{Ctx: ctx}, run.ID, domainjobs.StepVectorIDsTargeted)
	if err != nil {
		return "", err
	}
	var p VectorIDsPayload
	if step != nil && len(step.Payload) > 0 {
		if err := json.Unmarshal(step.Payload, &p); err != nil {
			return "", fmt.Errorf("decode %s payload: %w", domainjobs.StepVectorIDsTargeted, err)
		}
	}
	if len(p.IDs) > 0 {
		if err := s.vec.DeleteIDs(ctx, p.Namespace, p.IDs); err != nil {
			return "", err
		}
	}
	_ = s.AppendStep(ctx, run.ID, domainjobs.StepReconciled, domainjobs.SagaStepStatusDone, map[string]any{
		"outcome":         "document_gone",
		"vector_ids_sent": len(p.IDs),
	})
	if err := s.MarkStatus(ctx, run.ID, domainjobs.SagaStatusSucceeded); err != nil {
		return "", err
	}
	observability.Current().IncSaga(run.Kind, domainjobs.SagaStatusSucceeded)
	return domainjobs.SagaStatusSucceeded, nil
}
