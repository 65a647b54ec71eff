package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/secondbrain-backend/internal/http/handlers"
	httpMW "github.com/yungbote/secondbrain-backend/internal/http/middleware"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware
	ContentHandler *httpH.ContentHandler
	ShareHandler   *httpH.ShareHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	user := r.Group("/api/user")
	{
		// Public
		if cfg.AuthHandler != nil {
			user.POST("/signup", cfg.AuthHandler.Signup)
			user.POST("/signin", cfg.AuthHandler.Signin)
		}
		if cfg.ShareHandler != nil {
			user.GET("/share/:hash", cfg.ShareHandler.Resolve)
		}
	}

	protected := user.Group("")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.ContentHandler != nil {
			protected.POST("/content", cfg.ContentHandler.Create)
			protected.GET("/content", cfg.ContentHandler.List)
			protected.DELETE("/content", cfg.ContentHandler.Delete)
			protected.POST("/search", cfg.ContentHandler.Search)
			protected.POST("/ask", cfg.ContentHandler.Ask)
		}

		if cfg.ShareHandler != nil {
			protected.POST("/share", cfg.ShareHandler.SetSharing)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
