package app

import (
	"fmt"

	"github.com/yungbote/secondbrain-backend/internal/modules/rag/embedding"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

type Services struct {
	Auth  services.AuthService
	Share services.ShareService
	Saga  services.SagaService

	Embedder *embedding.Embedder
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	embedder, err := embedding.New(log, clients.OpenAI, cfg.Embedding)
	if err != nil {
		return Services{}, fmt.Errorf("init embedder: %w", err)
	}

	return Services{
		Auth:     services.NewAuthService(log, repos.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Share:    services.NewShareService(log, repos.ShareLink, repos.User, repos.Document),
		Saga:     services.NewSagaService(log, repos.SagaRun, repos.SagaStep, repos.Document, clients.VectorStore),
		Embedder: embedder,
	}, nil
}
