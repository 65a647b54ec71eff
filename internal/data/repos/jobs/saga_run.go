package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type SagaRunRepo interface {
	Create(dbc dbctx.Context, rows []*types.SagaRun) ([]*types.SagaRun, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.SagaRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SagaRun, error)
	ListByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*types.SagaRun, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	ListByStatusBefore(dbc dbctx.Context, statuses []string, before time.Time, limit int) ([]*types.SagaRun, error)
}

type sagaRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaRunRepo(db *gorm.DB, baseLog *logger.Logger) SagaRunRepo {
	return &sagaRunRepo{db: db, log: baseLog.With("repo", "SagaRunRepo")}
}

func (r *sagaRunRepo) Create(dbc dbctx.Context, rows []*types.SagaRun) ([]*types.SagaRun, error) {
	if len(rows) == 0 {
		return []*types.SagaRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sagaRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.SagaRun, error) {
	var out []*types.SagaRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sagaRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SagaRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *sagaRunRepo) ListByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*types.SagaRun, error) {
	var out []*types.SagaRun
	if documentID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sagaRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.SagaRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sagaRunRepo) ListByStatusBefore(dbc dbctx.Context, statuses []string, before time.Time, limit int) ([]*types.SagaRun, error) {
	var out []*types.SagaRun
	if len(statuses) == 0 {
		return out, nil
	}
	q := dbc.DB(r.db).Where("status IN ? AND updated_at < ?", statuses, before).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
