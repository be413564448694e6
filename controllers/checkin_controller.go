package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stickerguard/middleware"
	"github.com/cppla/stickerguard/services"
	"github.com/cppla/stickerguard/utils"
)

// CheckInController records sticker confirmations and serves the history.
type CheckInController struct {
	checkins *services.CheckInService
	timer    *services.TimerService
	clock    utils.Clock
}

// NewCheckInController creates a CheckInController.
func NewCheckInController(checkins *services.CheckInService, timer *services.TimerService, clock utils.Clock) *CheckInController {
	return &CheckInController{checkins: checkins, timer: timer, clock: clock}
}

// Create records today's check-in.
func (c *CheckInController) Create(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	type request struct {
		HasSticker *bool  `json:"has_sticker" binding:"required"`
		Note       string `json:"note"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if len([]rune(req.Note)) > 255 {
		utils.Error(ctx, http.StatusBadRequest, 40021, "note too long")
		return
	}

	result, err := c.checkins.Complete(userID, *req.HasSticker, strings.TrimSpace(req.Note))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyCheckedIn):
			utils.Error(ctx, http.StatusConflict, 40920, "already checked in today")
		case errors.Is(err, services.ErrOutsideSite):
			utils.Error(ctx, http.StatusConflict, 40921, "cannot check in from outside the site")
		case errors.Is(err, services.ErrAccountLocked):
			utils.Error(ctx, http.StatusLocked, 42301, "account is locked")
		case errors.Is(err, services.ErrUserNotFound):
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to record check-in")
		}
		return
	}

	// The aggregate changed; drop any cached stats payload.
	utils.InvalidateByPrefix("cache:stats:" + userID)

	utils.Success(ctx, result)
}

// Today reports whether the caller has already checked in for the current day.
func (c *CheckInController) Today(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	now := c.clock.Now()
	checked, err := c.checkins.TodayCheckedIn(userID, now)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to query today's check-in")
		return
	}

	utils.Success(ctx, gin.H{
		"date":       now.Format("2006-01-02"),
		"checked_in": checked,
	})
}

// List returns the most recent check-ins, newest first.
func (c *CheckInController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	limit := 0
	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := c.checkins.History(userID, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load history")
		return
	}

	utils.Success(ctx, gin.H{"items": records, "count": len(records)})
}

// Status combines today's obligation with the armed deadline, if any.
func (c *CheckInController) Status(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	now := c.clock.Now()
	checked, err := c.checkins.TodayCheckedIn(userID, now)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to query today's check-in")
		return
	}

	payload := gin.H{
		"date":         now.Format("2006-01-02"),
		"checked_in":   checked,
		"timer_active": false,
	}
	if deadline, ok := c.timer.Deadline(userID); ok {
		remaining := int(deadline.Sub(now) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		payload["timer_active"] = true
		payload["check_in_deadline"] = deadline
		payload["remaining_seconds"] = remaining
	}

	utils.Success(ctx, payload)
}
