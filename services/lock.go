package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

// MonitorStopper stops a user's geofence watcher during lock teardown.
type MonitorStopper interface {
	StopMonitoring(userID string)
}

// LockInfo is the terminal screen payload for a locked account.
type LockInfo struct {
	LockedAt      *time.Time `json:"locked_at"`
	LockReason    string     `json:"lock_reason"`
	LostStreak    int        `json:"lost_streak"`
	LostBadges    int        `json:"lost_badges"`
	LostCheckIns  int        `json:"lost_check_ins"`
	AccountStatus string     `json:"account_status"`
}

// LockService performs the irreversible account-lock transition. Every step is
// idempotent so a partially completed lock self-heals on retry, and the two
// enforcement paths (client expiry, server sweep) can race benignly.
type LockService struct {
	db        *gorm.DB
	clock     utils.Clock
	scheduler DeadlineScheduler
	monitor   MonitorStopper
	state     *StateRegistry
	notifier  Notifier
	batchSize int
}

// NewLockService builds the lock engine. batchSize bounds each history
// deletion page.
func NewLockService(db *gorm.DB, clock utils.Clock, scheduler DeadlineScheduler, monitor MonitorStopper, state *StateRegistry, notifier Notifier, batchSize int) *LockService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &LockService{
		db:        db,
		clock:     clock,
		scheduler: scheduler,
		monitor:   monitor,
		state:     state,
		notifier:  notifier,
		batchSize: batchSize,
	}
}

// Lock flips the account to LOCKED, purges the check-in history, resets stats,
// and tears down runtime state. Locking an already locked account never
// overwrites the original lockedAt/lockReason; the purge steps still run so a
// retry after partial failure completes the transition.
func (l *LockService) Lock(userID, reason string) error {
	var user models.User
	if err := l.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	now := l.clock.Now()

	// Guarded status flip: first writer wins on lockedAt/lockReason.
	res := l.db.Model(&models.User{}).
		Where("id = ? AND account_status = ?", userID, models.StatusActive).
		Updates(map[string]interface{}{
			"account_status":    models.StatusLocked,
			"locked_at":         now,
			"lock_reason":       reason,
			"check_in_deadline": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		utils.Sugar.Infof("account already locked user=%s, completing purge", userID)
	} else {
		utils.Sugar.Warnf("account locked user=%s reason=%q", userID, reason)
	}

	deleted, err := l.purgeCheckIns(userID)
	if err != nil {
		return err
	}

	if err := l.resetStats(userID, now); err != nil {
		return err
	}

	// Runtime teardown: no timer may fire and no watcher may re-arm after this.
	if err := l.scheduler.Cancel(userID); err != nil {
		utils.Sugar.Warnf("timer teardown during lock failed user=%s err=%v", userID, err)
	}
	l.monitor.StopMonitoring(userID)
	l.state.Drop(userID)

	if err := l.notifier.CancelAll(userID); err != nil {
		utils.Sugar.Warnf("reminder revocation during lock failed user=%s err=%v", userID, err)
	}
	if err := l.notifier.ShowNow(userID, "Account locked",
		"Your account was locked and all check-in data erased: "+reason); err != nil {
		utils.Sugar.Warnf("lock notice delivery failed user=%s err=%v", userID, err)
	}

	utils.Sugar.Infof("lock complete user=%s purged=%d", userID, deleted)
	return nil
}

// purgeCheckIns deletes the full history in pages of at most batchSize rows,
// looping until none remain. History can be arbitrarily large; never attempt
// it as one unbounded delete.
func (l *LockService) purgeCheckIns(userID string) (int64, error) {
	var total int64
	for {
		var ids []uint
		if err := l.db.Model(&models.CheckIn{}).
			Where("user_id = ?", userID).
			Order("id ASC").
			Limit(l.batchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := l.db.Delete(&models.CheckIn{}, ids)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected

		if len(ids) < l.batchSize {
			return total, nil
		}
	}
}

// resetStats writes the zero/empty aggregate stamped with deletedAt.
func (l *LockService) resetStats(userID string, now time.Time) error {
	stats := models.InitialStats(userID)
	stats.UpdatedAt = now
	stats.DeletedAt = &now

	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Stats{}).Error; err != nil {
			return err
		}
		return tx.Create(&stats).Error
	})
}

// Info returns the lock details shown on the terminal screen.
func (l *LockService) Info(userID string) (LockInfo, error) {
	var user models.User
	if err := l.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LockInfo{}, ErrUserNotFound
		}
		return LockInfo{}, err
	}

	info := LockInfo{
		LockedAt:      user.LockedAt,
		LockReason:    user.LockReason,
		AccountStatus: user.AccountStatus,
	}

	var stats models.Stats
	if err := l.db.Where("user_id = ?", userID).First(&stats).Error; err == nil {
		info.LostStreak = stats.LongestStreak
		info.LostBadges = len(stats.Badges)
		info.LostCheckIns = stats.TotalCheckIns
	}

	return info, nil
}
