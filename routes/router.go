package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/stickerguard/config"
	"github.com/cppla/stickerguard/controllers"
	"github.com/cppla/stickerguard/middleware"
	"github.com/cppla/stickerguard/services"
	"github.com/cppla/stickerguard/utils"
)

// Deps bundles the wired service graph handed to the router.
type Deps struct {
	DB       *gorm.DB
	Clock    utils.Clock
	State    *services.StateRegistry
	Geofence *services.GeofenceService
	Timer    *services.TimerService
	CheckIns *services.CheckInService
	Stats    *services.StatsService
	Lock     *services.LockService
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(deps.DB)
	locationController := controllers.NewLocationController(deps.Geofence, deps.Timer, deps.State)
	checkinController := controllers.NewCheckInController(deps.CheckIns, deps.Timer, deps.Clock)
	statsController := controllers.NewStatsController(deps.Stats)
	lockController := controllers.NewLockController(deps.Lock)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	// /auth/me stays reachable while locked so the client can learn the status.
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Lock info is the one domain endpoint a locked account may read.
	api.GET("/lock/info", middleware.AuthRequired(), lockController.Info)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.LockedAccountGate(deps.DB))

	locationGroup := protected.Group("/location")
	locationGroup.Use(middleware.RateLimitMiddleware())
	locationGroup.POST("/start", locationController.Start)
	locationGroup.POST("/stop", locationController.Stop)
	locationGroup.POST("/sample", locationController.Sample)
	locationGroup.GET("/status", locationController.Status)

	protected.POST("/checkins", checkinController.Create)
	protected.GET("/checkins", checkinController.List)
	protected.GET("/checkins/today", checkinController.Today)
	protected.GET("/checkins/status", checkinController.Status)

	protected.GET("/stats", statsController.Get)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
