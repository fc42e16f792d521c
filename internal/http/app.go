// Package http exposes the read-only API next to the bot: a health snapshot,
// a Mini Apps status endpoint and an admin view of the review queue.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rewards-bot-backend/internal/common/config"
	"rewards-bot-backend/internal/common/middleware"
	"rewards-bot-backend/internal/features/maintenance"
	requestsvc "rewards-bot-backend/internal/features/request/service"
	winnersvc "rewards-bot-backend/internal/features/winner/service"
)

type App struct {
	cfg      *config.Config
	winners  winnersvc.WinnerService
	requests *requestsvc.Service
	health   *maintenance.Service
}

func NewApp(cfg *config.Config, winners winnersvc.WinnerService, requests *requestsvc.Service, health *maintenance.Service) *App {
	return &App{cfg: cfg, winners: winners, requests: requests, health: health}
}

// Engine builds the configured gin engine. The caller owns the listener.
func (a *App) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{a.cfg.Server.Origin},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Telegram-Init-Data", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}))

	engine.GET("/health", a.healthHandler)

	api := engine.Group("/api/v1")
	{
		api.GET("/status",
			middleware.InitData(a.cfg.Telegram.BotToken, a.cfg.Server.InitDataTTL),
			a.statusHandler)
		api.GET("/admin/requests",
			middleware.AdminToken(a.cfg.Server.AdminToken),
			a.adminRequestsHandler)
	}
	return engine
}

func (a *App) healthHandler(c *gin.Context) {
	h := a.health.HealthCheck()
	status := http.StatusOK
	if h.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}
