package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stickerguard/middleware"
	"github.com/cppla/stickerguard/services"
	"github.com/cppla/stickerguard/utils"
)

// StatsController serves the per-user aggregate.
type StatsController struct {
	stats *services.StatsService
}

// NewStatsController creates a StatsController.
func NewStatsController(stats *services.StatsService) *StatsController {
	return &StatsController{stats: stats}
}

// Get returns streaks, badges, perfect weeks and monthly breakdowns. The
// payload only changes on check-in or lock, both of which invalidate the
// cache, so a short TTL is purely a safety net.
func (s *StatsController) Get(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	cacheKey := "cache:stats:" + userID
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	stats, err := s.stats.Get(userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load stats")
		return
	}

	payload := gin.H{
		"current_streak":  stats.CurrentStreak,
		"longest_streak":  stats.LongestStreak,
		"total_check_ins": stats.TotalCheckIns,
		"perfect_weeks":   stats.PerfectWeeks,
		"badges":          stats.Badges,
		"monthly_stats":   stats.MonthlyStats,
		"updated_at":      stats.UpdatedAt,
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, 5*time.Minute)
	utils.Success(ctx, payload)
}
