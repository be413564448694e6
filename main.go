package main

import (
	"time"

	"github.com/cppla/stickerguard/config"
	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/routes"
	"github.com/cppla/stickerguard/services"
	"github.com/cppla/stickerguard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.CheckIn{}, &models.Stats{})

	clock := utils.RealClock()

	var notifier services.Notifier = services.LogNotifier{}
	if rc := utils.GetRedis(); rc != nil {
		notifier = services.NewRedisNotifier(rc)
	}

	state := services.NewStateRegistry()
	timer := services.NewTimerService(db, clock, notifier, state, cfg.DeadlineMinutes, cfg.ReminderOffsetsMin)
	stats := services.NewStatsService(db)
	checkins := services.NewCheckInService(db, clock, timer, stats, state)
	geofence := services.NewGeofenceService(db, clock, timer, checkins, state, cfg.DeadlineMinutes)
	lock := services.NewLockService(db, clock, timer, geofence, state, notifier, cfg.DeleteBatchSize)
	// The timer and lock engine depend on each other; close the loop here.
	timer.SetLocker(lock)

	sweeper := services.NewSweeper(db, clock, lock, time.Duration(cfg.SweepIntervalSec)*time.Second)
	sweeper.Start()

	utils.OnShutdown(sweeper.Stop)
	utils.OnShutdown(timer.StopAll)

	r := routes.SetupRouter(routes.Deps{
		DB:       db,
		Clock:    clock,
		State:    state,
		Geofence: geofence,
		Timer:    timer,
		CheckIns: checkins,
		Stats:    stats,
		Lock:     lock,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
