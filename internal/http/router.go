package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/desksync/backend/internal/config"
	"github.com/desksync/backend/internal/http/handlers"
	"github.com/desksync/backend/internal/http/middleware"
)

func Router(cfg config.Config, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sync := r.Group("/sync")
	sync.Use(middleware.AdminKey(cfg.AdminKey))
	{
		sync.POST("/agents/:table", h.SyncAgents)
		sync.POST("/users/:table", h.SyncUsers)
		sync.POST("/tags/:table", h.SyncTags)
		sync.POST("/tickets/:table", h.SyncTickets)
		sync.POST("/ticket-messages/:table", h.SyncTicketMessages)
		sync.POST("/chat-analysis/:table", h.SyncChatAnalysis)
		sync.POST("/logs/:table", h.SyncLogs)
		sync.POST("/gazetteer/reload", h.ReloadGazetteer)
	}

	return r
}
