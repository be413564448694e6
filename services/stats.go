package services

import (
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

// badgeTiers maps consecutive-day thresholds to badge identifiers, ascending.
var badgeTiers = []struct {
	Streak int
	Name   string
}{
	{7, "week_1"},
	{14, "week_2"},
	{21, "week_3"},
	{30, "month_1"},
	{60, "month_2"},
	{90, "month_3"},
	{180, "half_year"},
	{365, "year"},
}

// UpdateResult is the caller-facing summary of a stats update.
type UpdateResult struct {
	CurrentStreak int      `json:"current_streak"`
	LongestStreak int      `json:"longest_streak"`
	TotalCheckIns int      `json:"total_check_ins"`
	NewBadges     []string `json:"new_badges"`
}

// StatsService derives the per-user aggregate from the check-in history.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates the stats engine.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// UpdateStats recomputes the aggregate after a newly recorded check-in.
// Runs in one transaction with the stats row locked so concurrent updates for
// the same user cannot interleave partial writes. Sub-computations degrade to
// safe defaults on store errors; only the final write can fail the update.
func (s *StatsService) UpdateStats(userID string, now time.Time) (UpdateResult, error) {
	var result UpdateResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("user_id = ?", userID)
		// sqlite rejects FOR UPDATE; its writes serialize on the whole file.
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var stats models.Stats
		err := q.First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = models.InitialStats(userID)
		} else if err != nil {
			return err
		}

		currentStreak, longestStreak := s.calculateStreak(tx, userID, now, stats.CurrentStreak, stats.LongestStreak)
		totalCheckIns := stats.TotalCheckIns + 1
		perfectWeeks := s.calculatePerfectWeeks(tx, userID)

		newBadges := checkNewBadges(currentStreak, stats.Badges)
		badges := append(append([]string{}, stats.Badges...), newBadges...)

		monthlyStats := s.updateMonthlyStats(tx, userID, now, stats.MonthlyStats)

		stats.CurrentStreak = currentStreak
		stats.LongestStreak = longestStreak
		stats.TotalCheckIns = totalCheckIns
		stats.PerfectWeeks = perfectWeeks
		stats.Badges = badges
		stats.MonthlyStats = monthlyStats
		stats.UpdatedAt = now
		stats.DeletedAt = nil

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&stats).Error; err != nil {
			return err
		}

		result = UpdateResult{
			CurrentStreak: currentStreak,
			LongestStreak: longestStreak,
			TotalCheckIns: totalCheckIns,
			NewBadges:     newBadges,
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}

	utils.Sugar.Infof("stats updated user=%s streak=%d longest=%d total=%d new_badges=%v",
		userID, result.CurrentStreak, result.LongestStreak, result.TotalCheckIns, result.NewBadges)
	return result, nil
}

// Get returns the user's aggregate, or the zero shape when none exists yet.
func (s *StatsService) Get(userID string) (models.Stats, error) {
	var stats models.Stats
	err := s.db.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.InitialStats(userID), nil
	}
	if err != nil {
		return models.InitialStats(userID), err
	}
	return stats, nil
}

// calculateStreak continues the streak when a check-in exists for yesterday,
// otherwise restarts at 1. Falls back to {1, prevLongest} on a store error so
// a flaky lookup never blocks the check-in.
func (s *StatsService) calculateStreak(tx *gorm.DB, userID string, now time.Time, prevStreak, prevLongest int) (int, int) {
	yesterday := now.AddDate(0, 0, -1).Format(models.DateLayout)

	var cnt int64
	if err := tx.Model(&models.CheckIn{}).
		Where("user_id = ? AND date = ?", userID, yesterday).
		Count(&cnt).Error; err != nil {
		utils.Sugar.Warnf("streak lookup failed user=%s err=%v", userID, err)
		return 1, prevLongest
	}

	currentStreak := 1
	if cnt > 0 {
		currentStreak = prevStreak + 1
	}

	longestStreak := prevLongest
	if currentStreak > longestStreak {
		longestStreak = currentStreak
	}
	return currentStreak, longestStreak
}

// calculatePerfectWeeks scans the full date history ascending and counts
// non-overlapping runs of exactly 7 consecutive days. An 8th consecutive day
// starts a fresh count at 1, it does not extend into a second week.
func (s *StatsService) calculatePerfectWeeks(tx *gorm.DB, userID string) int {
	var dates []string
	if err := tx.Model(&models.CheckIn{}).
		Where("user_id = ?", userID).
		Order("date ASC").
		Pluck("date", &dates).Error; err != nil {
		utils.Sugar.Warnf("perfect week scan failed user=%s err=%v", userID, err)
		return 0
	}

	perfectWeeks := 0
	consecutive := 1
	var prev time.Time
	havePrev := false

	for _, ds := range dates {
		cur, err := time.Parse(models.DateLayout, ds)
		if err != nil {
			continue
		}
		if havePrev {
			diffDays := int(cur.Sub(prev).Hours() / 24)
			if diffDays == 1 {
				consecutive++
				if consecutive == 7 {
					perfectWeeks++
					consecutive = 0
				}
			} else {
				consecutive = 1
			}
		}
		prev = cur
		havePrev = true
	}

	return perfectWeeks
}

// checkNewBadges returns badges whose threshold the streak just reached and
// which are not yet held. Earned badges are never revoked until a reset.
func checkNewBadges(currentStreak int, existing []string) []string {
	newBadges := []string{}
	for _, tier := range badgeTiers {
		if currentStreak >= tier.Streak && !utils.ContainsString(existing, tier.Name) {
			newBadges = append(newBadges, tier.Name)
		}
	}
	return newBadges
}

// updateMonthlyStats upserts the current calendar month, leaving other months
// untouched. Returns the previous map unchanged on a store error.
func (s *StatsService) updateMonthlyStats(tx *gorm.DB, userID string, now time.Time, prev map[string]models.MonthlyStat) map[string]models.MonthlyStat {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, -1)
	daysInMonth := monthEnd.Day()

	var cnt int64
	if err := tx.Model(&models.CheckIn{}).
		Where("user_id = ? AND date >= ? AND date <= ?",
			userID, monthStart.Format(models.DateLayout), monthEnd.Format(models.DateLayout)).
		Count(&cnt).Error; err != nil {
		utils.Sugar.Warnf("monthly stats query failed user=%s err=%v", userID, err)
		return prev
	}

	updated := map[string]models.MonthlyStat{}
	for k, v := range prev {
		updated[k] = v
	}
	updated[now.Format("2006-01")] = models.MonthlyStat{
		CheckIns:        int(cnt),
		AchievementRate: int(math.Round(float64(cnt) / float64(daysInMonth) * 100)),
	}
	return updated
}
