package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/stickerguard/models"
)

func dateStr(t time.Time) string { return t.Format(models.DateLayout) }

func TestUpdateStatsContinuesStreak(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	seedCheckIns(t, db, user.ID, dateStr(now.AddDate(0, 0, -1)), dateStr(now))

	prev := models.InitialStats(user.ID)
	prev.CurrentStreak = 5
	prev.LongestStreak = 5
	prev.TotalCheckIns = 5
	require.NoError(t, db.Create(&prev).Error)

	res, err := svc.UpdateStats(user.ID, now)
	require.NoError(t, err)

	assert.Equal(t, 6, res.CurrentStreak)
	assert.Equal(t, 6, res.LongestStreak)
	assert.Equal(t, 6, res.TotalCheckIns)
}

func TestUpdateStatsResetsStreakAfterGap(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	// No check-in yesterday: the streak restarts regardless of its old value.
	seedCheckIns(t, db, user.ID, dateStr(now.AddDate(0, 0, -3)), dateStr(now))

	prev := models.InitialStats(user.ID)
	prev.CurrentStreak = 9
	prev.LongestStreak = 12
	prev.TotalCheckIns = 20
	require.NoError(t, db.Create(&prev).Error)

	res, err := svc.UpdateStats(user.ID, now)
	require.NoError(t, err)

	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 12, res.LongestStreak, "longest streak survives the reset")
	assert.Equal(t, 21, res.TotalCheckIns)
}

func TestUpdateStatsFirstCheckInCreatesRow(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	seedCheckIns(t, db, user.ID, dateStr(now))

	res, err := svc.UpdateStats(user.ID, now)
	require.NoError(t, err)

	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 1, res.TotalCheckIns)
	assert.Empty(t, res.NewBadges)

	stored, err := svc.Get(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStreak)
	assert.Nil(t, stored.DeletedAt)
}

func TestPerfectWeeksCountNonOverlappingRuns(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		days int
		want int
	}{
		{"six days is no week", 6, 0},
		{"seven days is one week", 7, 1},
		{"eighth day starts a fresh run", 8, 1},
		{"thirteen days is still one week", 13, 1},
		{"fourteen days is two weeks", 14, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, db.Where("user_id = ?", user.ID).Delete(&models.CheckIn{}).Error)
			for i := tc.days - 1; i >= 0; i-- {
				seedCheckIns(t, db, user.ID, dateStr(now.AddDate(0, 0, -i)))
			}
			assert.Equal(t, tc.want, svc.calculatePerfectWeeks(db, user.ID))
		})
	}
}

func TestPerfectWeeksResetOnGap(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	// Six consecutive days, a gap, then six more: no run ever reaches seven.
	for i := 14; i >= 9; i-- {
		seedCheckIns(t, db, user.ID, dateStr(now.AddDate(0, 0, -i)))
	}
	for i := 5; i >= 0; i-- {
		seedCheckIns(t, db, user.ID, dateStr(now.AddDate(0, 0, -i)))
	}

	assert.Equal(t, 0, svc.calculatePerfectWeeks(db, user.ID))
}

func TestBadgeAwardedOnceAtThreshold(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	seedCheckIns(t, db, user.ID, dateStr(now.AddDate(0, 0, -1)), dateStr(now))

	prev := models.InitialStats(user.ID)
	prev.CurrentStreak = 6
	prev.LongestStreak = 6
	prev.TotalCheckIns = 6
	require.NoError(t, db.Create(&prev).Error)

	res, err := svc.UpdateStats(user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 7, res.CurrentStreak)
	assert.Equal(t, []string{"week_1"}, res.NewBadges)

	// The next day the badge is already held and must not be granted again.
	next := now.AddDate(0, 0, 1)
	seedCheckIns(t, db, user.ID, dateStr(next))
	res, err = svc.UpdateStats(user.ID, next)
	require.NoError(t, err)
	assert.Equal(t, 8, res.CurrentStreak)
	assert.Empty(t, res.NewBadges)

	stored, err := svc.Get(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"week_1"}, stored.Badges)
}

func TestCheckNewBadgesBackfillsSkippedTiers(t *testing.T) {
	got := checkNewBadges(30, []string{"week_1"})
	assert.Equal(t, []string{"week_2", "week_3", "month_1"}, got)
}

func TestMonthlyStatsAchievementRate(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db)
	svc := NewStatsService(db)

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	seedCheckIns(t, db, user.ID,
		dateStr(now.AddDate(0, 0, -2)),
		dateStr(now.AddDate(0, 0, -1)),
		dateStr(now))
	// A different month must stay untouched.
	seedCheckIns(t, db, user.ID, "2026-02-28")

	prev := models.InitialStats(user.ID)
	prev.MonthlyStats["2026-02"] = models.MonthlyStat{CheckIns: 1, AchievementRate: 4}
	require.NoError(t, db.Create(&prev).Error)

	_, err := svc.UpdateStats(user.ID, now)
	require.NoError(t, err)

	stored, err := svc.Get(user.ID)
	require.NoError(t, err)

	march := stored.MonthlyStats["2026-03"]
	assert.Equal(t, 3, march.CheckIns)
	assert.Equal(t, 10, march.AchievementRate, "round(3/31*100)")

	feb := stored.MonthlyStats["2026-02"]
	assert.Equal(t, 1, feb.CheckIns)
	assert.Equal(t, 4, feb.AchievementRate)
}
