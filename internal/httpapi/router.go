package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/common"
	"github.com/ringlabs/twitposter/internal/config"
	"github.com/ringlabs/twitposter/internal/httpapi/handlers"
	"github.com/ringlabs/twitposter/internal/httpapi/middleware"
	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/store/rabbitmq"
	"github.com/ringlabs/twitposter/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, local *localstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Device-ID", "X-Request-ID"},
		// Browser clients must be able to read the minted device ID back.
		ExposeHeaders:    []string{"X-Device-ID", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.Device())

	h := handlers.NewHandler(db, cfg, rds, local, pub)

	r.GET("/ping", h.Ping)
	r.GET("/niches", h.ListNiches)

	// auth
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	// Generation, settings, and history work for anonymous devices too;
	// a session only switches the backing store.
	open := r.Group("/")
	open.Use(middleware.AuthOptional(cfg.JWTSecret, rds))
	open.POST("/posts/generate", h.GeneratePost)
	open.GET("/posts", h.ListPosts)
	open.GET("/settings/api-key", h.GetAPIKey)
	open.PUT("/settings/api-key", h.PutAPIKey)
	open.DELETE("/settings/api-key", h.DeleteAPIKey)
	open.GET("/settings/niche", h.GetNichePreference)
	open.PUT("/settings/niche", h.PutNichePreference)
	open.GET("/settings/trial", h.GetTrialStatus)
	open.GET("/history/:niche_id", h.GetHistory)
	open.DELETE("/history/:niche_id", h.ClearHistory)
	open.DELETE("/history/:niche_id/:timestamp", h.DeleteTurn)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret, rds))
	authGroup.GET("/me", h.Me)
	authGroup.POST("/logout", h.Logout)
	authGroup.POST("/migrate", h.Migrate)

	return r
}
