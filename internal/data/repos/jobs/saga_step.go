package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type SagaStepRepo interface {
	Create(dbc dbctx.Context, rows []*types.SagaStep) ([]*types.SagaStep, error)

	ListBySagaID(dbc dbctx.Context, sagaID uuid.UUID) ([]*types.SagaStep, error)
	GetLatestByKind(dbc dbctx.Context, sagaID uuid.UUID, kind string) (*types.SagaStep, error)

	GetMaxSeq(dbc dbctx.Context, sagaID uuid.UUID) (int64, error)
}

type sagaStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaStepRepo(db *gorm.DB, baseLog *logger.Logger) SagaStepRepo {
	return &sagaStepRepo{db: db, log: baseLog.With("repo", "SagaStepRepo")}
}

func (r *sagaStepRepo) Create(dbc dbctx.Context, rows []*types.SagaStep) ([]*types.SagaStep, error) {
	if len(rows) == 0 {
		return []*types.SagaStep{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sagaStepRepo) ListBySagaID(dbc dbctx.Context, sagaID uuid.UUID) ([]*types.SagaStep, error) {
	var out []*types.SagaStep
	if sagaID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("saga_id = ?", sagaID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sagaStepRepo) GetLatestByKind(dbc dbctx.Context, sagaID uuid.UUID, kind string) (*types.SagaStep, error) {
	if sagaID == uuid.Nil || kind == "" {
		return nil, nil
	}
	var row types.SagaStep
	if err := dbc.DB(r.db).
		Where("saga_id = ? AND kind = ?", sagaID, kind).
		Order("seq DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *sagaStepRepo) GetMaxSeq(dbc dbctx.Context, sagaID uuid.UUID) (int64, error) {
	if sagaID == uuid.Nil {
		return 0, nil
	}
	var max int64
	if err := dbc.DB(r.db).
		Model(&types.SagaStep{}).
		Select("COALESCE(MAX(seq), 0)").
		Where("saga_id = ?", sagaID).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}
