package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stickerguard/middleware"
	"github.com/cppla/stickerguard/services"
	"github.com/cppla/stickerguard/utils"
)

// LocationController exposes the geofence monitor: start/stop, position
// samples and the live session status.
type LocationController struct {
	geofence *services.GeofenceService
	timer    *services.TimerService
	state    *services.StateRegistry
}

// NewLocationController creates a LocationController.
func NewLocationController(geofence *services.GeofenceService, timer *services.TimerService, state *services.StateRegistry) *LocationController {
	return &LocationController{geofence: geofence, timer: timer, state: state}
}

// Start begins monitoring the caller's session.
func (l *LocationController) Start(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	if err := l.geofence.StartMonitoring(userID); err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		case errors.Is(err, services.ErrAccountLocked):
			utils.Error(ctx, http.StatusLocked, 42301, "account is locked")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to start monitoring")
		}
		return
	}

	utils.Success(ctx, gin.H{"monitoring": true})
}

// Stop halts monitoring. An armed deadline timer keeps running: stopping the
// watcher is not a way out of an open obligation.
func (l *LocationController) Stop(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	l.geofence.StopMonitoring(userID)
	utils.Success(ctx, gin.H{"monitoring": false})
}

// Sample ingests one position fix and reports what it triggered.
func (l *LocationController) Sample(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	type request struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		utils.Error(ctx, http.StatusBadRequest, 40011, "coordinates out of range")
		return
	}

	res, err := l.geofence.HandleSample(userID, utils.Coordinate{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotMonitoring):
			utils.Error(ctx, http.StatusConflict, 40910, "monitoring is not active")
		case errors.Is(err, services.ErrUserNotFound):
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		case errors.Is(err, services.ErrAccountLocked):
			utils.Error(ctx, http.StatusLocked, 42301, "account is locked")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to process sample")
		}
		return
	}

	utils.Success(ctx, res)
}

// Status returns a snapshot of the caller's session: containment, distance
// and the live countdown.
func (l *LocationController) Status(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	snap := l.state.Get(userID).Snapshot()

	payload := gin.H{
		"monitoring":        snap.Monitoring,
		"within_site":       snap.WithinSite,
		"distance_to_site":  snap.DistanceToSite,
		"distance_display":  utils.FormatDistance(snap.DistanceToSite),
		"timer_active":      snap.TimerActive,
		"remaining_seconds": snap.RemainingSeconds,
	}
	if deadline, ok := l.timer.Deadline(userID); ok {
		payload["check_in_deadline"] = deadline
	}
	if snap.LastEnteredSite != nil {
		payload["last_entered_site"] = snap.LastEnteredSite
	}

	utils.Success(ctx, payload)
}
