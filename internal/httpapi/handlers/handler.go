package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/ai"
	"github.com/ringlabs/twitposter/internal/common"
	"github.com/ringlabs/twitposter/internal/config"
	"github.com/ringlabs/twitposter/internal/generator"
	"github.com/ringlabs/twitposter/internal/httpapi/middleware"
	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/migrate"
	"github.com/ringlabs/twitposter/internal/settings"
	"github.com/ringlabs/twitposter/internal/store/rabbitmq"
	"github.com/ringlabs/twitposter/internal/store/redisstore"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Redis     *redisstore.Store
	Local     *localstore.Store
	Publisher *rabbitmq.Publisher // nil when rabbit is unavailable

	SettingsSvc *settings.Service
	GenSvc      *generator.Service
	Reconciler  *migrate.Reconciler
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, local *localstore.Store, pub *rabbitmq.Publisher) *Handler {
	settingsRepo := settings.NewRepo(db)
	settingsSvc := settings.NewService(settingsRepo, local, cfg.TrialAPIKey, cfg.TrialLimit)

	turnsRepo := generator.NewRepo(db)

	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, apiKey string) (ai.Provider, error) {
		return ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiModel, apiKey, cfg.PostCharLimit), nil
	})

	store := generator.NewFallbackStore(
		generator.NewRemoteStore(turnsRepo),
		generator.NewLocalStore(local),
	)
	genSvc := generator.NewService(store, settingsSvc, reg, cfg.PostCharLimit)

	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Redis:       rds,
		Local:       local,
		Publisher:   pub,
		SettingsSvc: settingsSvc,
		GenSvc:      genSvc,
		Reconciler:  migrate.NewReconciler(settingsRepo, turnsRepo, local),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// scopeFrom builds the ownership scope for the request: user ID when a
// session is attached, device ID always.
func scopeFrom(c *gin.Context) settings.Scope {
	scope := settings.Scope{DeviceID: c.GetString(middleware.DeviceIDKey)}
	if v, ok := c.Get(middleware.UserIDKey); ok {
		if id, ok := v.(uint64); ok {
			scope.UserID = id
		}
	}
	return scope
}
