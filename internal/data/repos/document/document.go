package document

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

// DocumentRepo is scoped by owner on every read and delete; a document owned
// by someone else is indistinguishable from a missing one.
type DocumentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Document) ([]*types.Document, error)

	GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Document, error)
	GetByIDsForUser(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) ([]*types.Document, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Document, error)
	LockByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Document, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)

	UpdateChunkCount(dbc dbctx.Context, id uuid.UUID, chunkCount int) error
	DeleteByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, rows []*types.Document) ([]*types.Document, error) {
	if len(rows) == 0 {
		return []*types.Document{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentRepo) GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Document, error) {
	rows, err := r.GetByIDsForUser(dbc, userID, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *documentRepo) GetByIDsForUser(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) ([]*types.Document, error) {
	var out []*types.Document
	if userID == uuid.Nil || len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Document, error) {
	var out []*types.Document
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockByIDForUser takes a row lock for the enclosing transaction. SQLite ignores
// the locking clause and relies on its single writer instead.
func (r *documentRepo) LockByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Document, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var row types.Document
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *documentRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.Document{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *documentRepo) UpdateChunkCount(dbc dbctx.Context, id uuid.UUID, chunkCount int) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"chunk_count": chunkCount,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *documentRepo) DeleteByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (int64, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Document{})
	return res.RowsAffected, res.Error
}
