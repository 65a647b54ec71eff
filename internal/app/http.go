package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/http"
	httpH "github.com/yungbote/secondbrain-backend/internal/http/handlers"
	httpMW "github.com/yungbote/secondbrain-backend/internal/http/middleware"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Auth    *httpH.AuthHandler
	Content *httpH.ContentHandler
	Share   *httpH.ShareHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, brain httpH.Brain) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(db),
		Auth:    httpH.NewAuthHandler(services.Auth),
		Content: httpH.NewContentHandler(log, brain),
		Share:   httpH.NewShareHandler(services.Share),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	gin.SetMode(cfg.GinMode)
	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Current()
	}
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(log, http.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		Metrics:        metrics,
		HealthHandler:  handlers.Health,
		AuthHandler:    handlers.Auth,
		AuthMiddleware: middleware.Auth,
		ContentHandler: handlers.Content,
		ShareHandler:   handlers.Share,
	})
}
