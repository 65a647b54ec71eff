package share

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type ShareLinkRepo interface {
	Create(dbc dbctx.Context, row *types.ShareLink) (*types.ShareLink, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.ShareLink, error)
	GetByHash(dbc dbctx.Context, hash string) (*types.ShareLink, error)
	DeleteByUserID(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type shareLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewShareLinkRepo(db *gorm.DB, baseLog *logger.Logger) ShareLinkRepo {
	return &shareLinkRepo{db: db, log: baseLog.With("repo", "ShareLinkRepo")}
}

func (r *shareLinkRepo) Create(dbc dbctx.Context, row *types.ShareLink) (*types.ShareLink, error) {
	if row == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *shareLinkRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.ShareLink, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "user_id = ?", userID)
}

func (r *shareLinkRepo) GetByHash(dbc dbctx.Context, hash string) (*types.ShareLink, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil
	}
	return r.first(dbc, "hash = ?", hash)
}

func (r *shareLinkRepo) DeleteByUserID(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("user_id = ?", userID).Delete(&types.ShareLink{})
	return res.RowsAffected, res.Error
}

func (r *shareLinkRepo) first(dbc dbctx.Context, cond string, arg interface{}) (*types.ShareLink, error) {
	var row types.ShareLink
	if err := dbc.DB(r.db).Where(cond, arg).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
