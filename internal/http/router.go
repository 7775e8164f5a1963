// Package http wires the gin router for the §6 entry points, in the
// teacher's internal/http/router.go NewRouter(cfg) shape.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/reelsheet/montage-core/internal/http/handlers"
	"github.com/reelsheet/montage-core/internal/http/middleware"
)

type RouterConfig struct {
	HealthHandler *handlers.HealthHandler
	VideoHandler  *handlers.VideoHandler
	AllowOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("montage-core"))
	r.Use(middleware.TraceContext())
	r.Use(middleware.CORS(cfg.AllowOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	if cfg.VideoHandler != nil {
		r.POST("/videos/:id/init", cfg.VideoHandler.Init)
		r.POST("/videos/:id/drive", cfg.VideoHandler.Drive)
		r.GET("/videos/:id", cfg.VideoHandler.Get)
		r.DELETE("/videos/:id/run", cfg.VideoHandler.CancelRun)
	}

	return r
}
