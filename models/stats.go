package models

import "time"

// MonthlyStat aggregates check-ins for one calendar month (key "2006-01").
type MonthlyStat struct {
	CheckIns        int `json:"check_ins"`
	AchievementRate int `json:"achievement_rate"` // percent of days in the month
}

// Stats is the single mutable aggregate per user, derived from the check-in
// history. Created lazily on the first check-in, reset atomically on lock.
type Stats struct {
	UserID        string                 `gorm:"primaryKey;size:36" json:"user_id"`
	CurrentStreak int                    `json:"current_streak"`
	LongestStreak int                    `json:"longest_streak"`
	TotalCheckIns int                    `json:"total_check_ins"`
	PerfectWeeks  int                    `json:"perfect_weeks"`
	Badges        []string               `gorm:"serializer:json" json:"badges"`
	MonthlyStats  map[string]MonthlyStat `gorm:"serializer:json" json:"monthly_stats"`
	UpdatedAt     time.Time              `json:"updated_at"`
	DeletedAt     *time.Time             `json:"deleted_at,omitempty"` // stamped by the lock reset, not a soft-delete marker
}

// InitialStats returns the zero/empty aggregate shape.
func InitialStats(userID string) Stats {
	return Stats{
		UserID:       userID,
		Badges:       []string{},
		MonthlyStats: map[string]MonthlyStat{},
	}
}
