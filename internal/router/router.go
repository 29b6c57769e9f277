package router

import (
	"log/slog"
	"net/http"

	"heliactyl/config"
	"heliactyl/internal/domain"
	"heliactyl/internal/handler"
	"heliactyl/internal/middleware"
	"heliactyl/internal/repository"
	"heliactyl/internal/scheduler"
	"heliactyl/internal/service"
	"heliactyl/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the long-lived components the HTTP layer serves.
type Deps struct {
	DB      *gorm.DB
	Boosts  *service.BoostService
	Store   *service.StoreService
	Sweeper *scheduler.Sweeper
	Hub     *ws.Hub
	Limiter middleware.Limiter
	Logger  *slog.Logger
}

func Setup(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter))
	}

	userRepo := repository.NewUserRepository(d.DB)
	walletRepo := repository.NewWalletRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)

	boostHandler := handler.NewBoostHandler(d.Boosts, d.Logger)
	storeHandler := handler.NewStoreHandler(d.Store, d.Logger)
	meHandler := handler.NewMeHandler(userRepo, walletRepo, d.Logger)
	walletHandler := handler.NewWalletHandler(walletRepo, d.Logger)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, d.Logger)
	adminHandler := handler.NewAdminHandler(d.DB, d.Boosts, d.Sweeper, d.Logger)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/events", ws.UpgradeEventsWS(&cfg.JWT, d.Hub))

	api := r.Group("/api")
	api.Use(authMw)
	{
		api.GET("/user", meHandler.Get)
		api.GET("/wallet/transactions", walletHandler.Transactions)

		b := api.Group("/boosts")
		{
			b.GET("/types", boostHandler.Types)
			b.GET("/active", boostHandler.Active)
			b.GET("/scheduled", boostHandler.Scheduled)
			b.GET("/history", boostHandler.History)
			b.POST("/apply", boostHandler.Apply)
			b.POST("/schedule", boostHandler.Schedule)
			b.POST("/cancel", boostHandler.Cancel)
			b.POST("/cancel-scheduled", boostHandler.CancelScheduled)
			b.POST("/extend", boostHandler.Extend)
		}

		store := api.Group("/store")
		{
			store.GET("/config", storeHandler.Config)
			store.POST("/buy", storeHandler.Buy)
		}

		api.GET("/notifications", notificationHandler.List)
		api.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		api.PUT("/notifications/:id/read", notificationHandler.MarkRead)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(domain.RoleAdmin))
		{
			admin.POST("/users/:id/coins", adminHandler.CreditCoins)
			admin.GET("/boosts/reconcile", adminHandler.ListReconcile)
			admin.POST("/boosts/sweep", adminHandler.Sweep)
		}
	}
	return r
}
