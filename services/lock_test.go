package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
)

func newTestLock(t *testing.T, batchSize int) (*LockService, *gorm.DB, *stubScheduler, *stubMonitor, *recordingNotifier, models.User) {
	t.Helper()
	db := openTestDB(t)
	user := createTestUser(t, db)
	clock := newFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	scheduler := newStubScheduler()
	monitor := &stubMonitor{}
	notifier := &recordingNotifier{}
	svc := NewLockService(db, clock, scheduler, monitor, NewStateRegistry(), notifier, batchSize)
	return svc, db, scheduler, monitor, notifier, user
}

func seedManyCheckIns(t *testing.T, db *gorm.DB, userID string, n int) {
	t.Helper()
	base := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	rows := make([]models.CheckIn, 0, n)
	for i := 0; i < n; i++ {
		day := base.AddDate(0, 0, i)
		rows = append(rows, models.CheckIn{
			UserID:     userID,
			Date:       day.Format(models.DateLayout),
			CheckedAt:  day,
			HasSticker: true,
			EnteredAt:  day,
		})
	}
	require.NoError(t, db.CreateInBatches(rows, 200).Error)
}

func TestLockIsTerminalAndErasesEverything(t *testing.T) {
	svc, db, scheduler, monitor, notifier, user := newTestLock(t, 500)
	seedCheckIns(t, db, user.ID, "2026-03-08", "2026-03-09")

	stats := models.InitialStats(user.ID)
	stats.CurrentStreak = 2
	stats.LongestStreak = 9
	stats.TotalCheckIns = 40
	stats.Badges = []string{"week_1"}
	require.NoError(t, db.Create(&stats).Error)

	deadline := time.Now().Add(10 * time.Minute)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("check_in_deadline", deadline).Error)
	require.NoError(t, scheduler.Start(user.ID, deadline))

	require.NoError(t, svc.Lock(user.ID, LockReasonDeadline))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, models.StatusLocked, stored.AccountStatus)
	assert.NotNil(t, stored.LockedAt)
	assert.Equal(t, LockReasonDeadline, stored.LockReason)
	assert.Nil(t, stored.CheckInDeadline)

	var remaining int64
	require.NoError(t, db.Model(&models.CheckIn{}).Where("user_id = ?", user.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	var reset models.Stats
	require.NoError(t, db.First(&reset, "user_id = ?", user.ID).Error)
	assert.Zero(t, reset.CurrentStreak)
	assert.Zero(t, reset.TotalCheckIns)
	assert.Empty(t, reset.Badges)
	assert.NotNil(t, reset.DeletedAt)

	assert.False(t, scheduler.Active(user.ID))
	assert.Contains(t, monitor.stopped, user.ID)
	assert.Contains(t, notifier.cancels, user.ID)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.NotEmpty(t, notifier.scheduled)
	last := notifier.scheduled[len(notifier.scheduled)-1]
	assert.True(t, last.Now)
	assert.Equal(t, "Account locked", last.Title)
}

func TestLockIsIdempotentFirstWriterWins(t *testing.T) {
	svc, db, _, _, _, user := newTestLock(t, 500)

	require.NoError(t, svc.Lock(user.ID, "first reason"))

	var first models.User
	require.NoError(t, db.First(&first, "id = ?", user.ID).Error)
	require.NotNil(t, first.LockedAt)
	firstLockedAt := *first.LockedAt

	// A racing second caller must not overwrite when or why.
	require.NoError(t, svc.Lock(user.ID, "second reason"))

	var second models.User
	require.NoError(t, db.First(&second, "id = ?", user.ID).Error)
	assert.Equal(t, "first reason", second.LockReason)
	assert.Equal(t, firstLockedAt.Unix(), second.LockedAt.Unix())
}

func TestLockRetryCompletesPartialPurge(t *testing.T) {
	svc, db, _, _, _, user := newTestLock(t, 500)
	require.NoError(t, svc.Lock(user.ID, "deadline"))

	// Rows that survived a crashed first attempt are swept by the retry.
	seedCheckIns(t, db, user.ID, "2026-03-01", "2026-03-02")
	require.NoError(t, svc.Lock(user.ID, "retry"))

	var remaining int64
	require.NoError(t, db.Model(&models.CheckIn{}).Where("user_id = ?", user.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestPurgeDeletesHistoryInPages(t *testing.T) {
	svc, db, _, _, _, user := newTestLock(t, 50)
	seedManyCheckIns(t, db, user.ID, 120)

	other := createTestUser(t, db)
	seedCheckIns(t, db, other.ID, "2026-03-09")

	deleted, err := svc.purgeCheckIns(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.CheckIn{}).Where("user_id = ?", user.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	var untouched int64
	require.NoError(t, db.Model(&models.CheckIn{}).Where("user_id = ?", other.ID).Count(&untouched).Error)
	assert.Equal(t, int64(1), untouched)
}

func TestLockInfo(t *testing.T) {
	svc, _, _, _, _, user := newTestLock(t, 500)
	require.NoError(t, svc.Lock(user.ID, "deadline elapsed"))

	info, err := svc.Info(user.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusLocked, info.AccountStatus)
	assert.NotNil(t, info.LockedAt)
	assert.Equal(t, "deadline elapsed", info.LockReason)

	_, err = svc.Info("no-such-user")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
