package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type Repos struct {
	User      repos.UserRepo
	Document  repos.DocumentRepo
	ShareLink repos.ShareLinkRepo
	SagaRun   repos.SagaRunRepo
	SagaStep  repos.SagaStepRepo
}

// wireRepos binds the saga repos to sagaDB, which is db itself except in
// SQLite mode.
func wireRepos(db *gorm.DB, sagaDB *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		Document:  repos.NewDocumentRepo(db, log),
		ShareLink: repos.NewShareLinkRepo(db, log),
		SagaRun:   repos.NewSagaRunRepo(sagaDB, log),
		SagaStep:  repos.NewSagaStepRepo(sagaDB, log),
	}
}
