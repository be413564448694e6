package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

var (
	// ErrAlreadyCheckedIn enforces at most one check-in per user per calendar day.
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	// ErrOutsideSite rejects confirmations sent from outside the geofence.
	ErrOutsideSite = errors.New("outside the monitored site")
)

// CheckInResult summarizes a completed confirmation for the client.
type CheckInResult struct {
	Date          string   `json:"date"`
	HasSticker    bool     `json:"has_sticker"`
	CurrentStreak int      `json:"current_streak"`
	TotalCheckIns int      `json:"total_check_ins"`
	NewBadges     []string `json:"new_badges"`
}

// CheckInService records sticker confirmations and drives the timer
// cancellation and stats update that follow a durable write.
type CheckInService struct {
	db        *gorm.DB
	clock     utils.Clock
	scheduler DeadlineScheduler
	stats     *StatsService
	state     *StateRegistry
}

// NewCheckInService wires the check-in flow.
func NewCheckInService(db *gorm.DB, clock utils.Clock, scheduler DeadlineScheduler, stats *StatsService, state *StateRegistry) *CheckInService {
	return &CheckInService{
		db:        db,
		clock:     clock,
		scheduler: scheduler,
		stats:     stats,
		state:     state,
	}
}

// Complete records today's check-in, cancels the deadline timer, then updates
// stats. The record write is the durable step; stats are best-effort and must
// never block the confirmation.
func (c *CheckInService) Complete(userID string, hasSticker bool, note string) (CheckInResult, error) {
	var user models.User
	if err := c.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CheckInResult{}, ErrUserNotFound
		}
		return CheckInResult{}, err
	}
	if user.Locked() {
		return CheckInResult{}, ErrAccountLocked
	}

	// The sticker check is physical: a session that is being monitored and is
	// known to be outside the radius cannot confirm.
	snap := c.state.Get(userID).Snapshot()
	if snap.Monitoring && !snap.WithinSite {
		return CheckInResult{}, ErrOutsideSite
	}

	now := c.clock.Now()
	date := now.Format(models.DateLayout)

	checked, err := c.TodayCheckedIn(userID, now)
	if err != nil {
		return CheckInResult{}, err
	}
	if checked {
		return CheckInResult{}, ErrAlreadyCheckedIn
	}

	enteredAt := now
	if user.LastEnteredSite != nil {
		enteredAt = *user.LastEnteredSite
	}

	record := models.CheckIn{
		UserID:     userID,
		Date:       date,
		CheckedAt:  now,
		HasSticker: hasSticker,
		EnteredAt:  enteredAt,
		Note:       utils.Sanitize(note),
	}
	if err := c.db.Create(&record).Error; err != nil {
		return CheckInResult{}, err
	}

	if err := c.scheduler.Cancel(userID); err != nil {
		utils.Sugar.Errorf("timer cancel after check-in failed user=%s err=%v", userID, err)
	}

	result := CheckInResult{Date: date, HasSticker: hasSticker, NewBadges: []string{}}

	// Server-side stats trigger: fires on every created check-in.
	stats, err := c.stats.UpdateStats(userID, now)
	if err != nil {
		utils.Sugar.Errorf("stats update failed user=%s err=%v", userID, err)
	} else {
		result.CurrentStreak = stats.CurrentStreak
		result.TotalCheckIns = stats.TotalCheckIns
		result.NewBadges = stats.NewBadges
	}

	c.state.Get(userID).SetLastCheckIn(now)

	utils.Sugar.Infof("check-in complete user=%s date=%s sticker=%v streak=%d",
		userID, date, hasSticker, result.CurrentStreak)
	return result, nil
}

// TodayCheckedIn reports whether a check-in exists for the calendar day of now.
func (c *CheckInService) TodayCheckedIn(userID string, now time.Time) (bool, error) {
	var cnt int64
	err := c.db.Model(&models.CheckIn{}).
		Where("user_id = ? AND date = ?", userID, now.Format(models.DateLayout)).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// History returns the most recent check-ins, newest first.
func (c *CheckInService) History(userID string, limit int) ([]models.CheckIn, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	var records []models.CheckIn
	err := c.db.Where("user_id = ?", userID).
		Order("date DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
