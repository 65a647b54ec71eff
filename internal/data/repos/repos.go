package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos/document"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/jobs"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/share"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/user"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type DocumentRepo = document.DocumentRepo
type ShareLinkRepo = share.ShareLinkRepo
type SagaRunRepo = jobs.SagaRunRepo
type SagaStepRepo = jobs.SagaStepRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return document.NewDocumentRepo(db, baseLog)
}
func NewShareLinkRepo(db *gorm.DB, baseLog *logger.Logger) ShareLinkRepo {
	return share.NewShareLinkRepo(db, baseLog)
}
func NewSagaRunRepo(db *gorm.DB, baseLog *logger.Logger) SagaRunRepo {
	return jobs.NewSagaRunRepo(db, baseLog)
}
func NewSagaStepRepo(db *gorm.DB, baseLog *logger.Logger) SagaStepRepo {
	return jobs.NewSagaStepRepo(db, baseLog)
}
