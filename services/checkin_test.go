package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
)

func newTestCheckIn(t *testing.T) (*CheckInService, *gorm.DB, *fakeClock, *stubScheduler, *StateRegistry, models.User) {
	t.Helper()
	db := openTestDB(t)
	user := createTestUser(t, db)
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))
	scheduler := newStubScheduler()
	state := NewStateRegistry()
	svc := NewCheckInService(db, clock, scheduler, NewStatsService(db), state)
	return svc, db, clock, scheduler, state, user
}

func TestCompleteRecordsAndCancelsTimer(t *testing.T) {
	svc, db, clock, scheduler, state, user := newTestCheckIn(t)
	require.NoError(t, scheduler.Start(user.ID, clock.Now().Add(30*time.Minute)))

	res, err := svc.Complete(user.ID, true, "all stickers present")
	require.NoError(t, err)

	assert.Equal(t, "2026-03-10", res.Date)
	assert.True(t, res.HasSticker)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 1, res.TotalCheckIns)

	assert.False(t, scheduler.Active(user.ID), "an open deadline is cancelled by the confirmation")

	var stored models.CheckIn
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, "all stickers present", stored.Note)

	assert.NotNil(t, state.Get(user.ID).Snapshot().LastCheckInAt)
}

func TestCompleteRejectsSecondCheckInSameDay(t *testing.T) {
	svc, _, _, _, _, user := newTestCheckIn(t)

	_, err := svc.Complete(user.ID, true, "")
	require.NoError(t, err)

	_, err = svc.Complete(user.ID, false, "")
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestCompleteAllowedNextDay(t *testing.T) {
	svc, _, clock, _, _, user := newTestCheckIn(t)

	_, err := svc.Complete(user.ID, true, "")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	res, err := svc.Complete(user.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
	assert.Equal(t, 2, res.TotalCheckIns)
}

func TestCompleteRejectsWhenOutsideSite(t *testing.T) {
	svc, _, _, _, state, user := newTestCheckIn(t)

	st := state.Get(user.ID)
	st.SetMonitoring(true)
	st.RecordSample(1200, false)

	_, err := svc.Complete(user.ID, true, "")
	assert.ErrorIs(t, err, ErrOutsideSite)
}

func TestCompleteRejectsLockedAccount(t *testing.T) {
	svc, db, _, _, _, user := newTestCheckIn(t)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("account_status", models.StatusLocked).Error)

	_, err := svc.Complete(user.ID, true, "")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestCompleteSanitizesNote(t *testing.T) {
	svc, db, _, _, _, user := newTestCheckIn(t)

	_, err := svc.Complete(user.ID, true, "<b>looks</b> fine")
	require.NoError(t, err)

	var stored models.CheckIn
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, "looks fine", stored.Note)
}

func TestCompleteUsesLastSiteEntryTime(t *testing.T) {
	svc, db, clock, _, _, user := newTestCheckIn(t)

	entered := clock.Now().Add(-20 * time.Minute)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_entered_site", entered).Error)

	_, err := svc.Complete(user.ID, true, "")
	require.NoError(t, err)

	var stored models.CheckIn
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, entered.Unix(), stored.EnteredAt.Unix())
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	svc, db, _, _, _, user := newTestCheckIn(t)
	seedCheckIns(t, db, user.ID, "2026-03-07", "2026-03-08", "2026-03-09")

	records, err := svc.History(user.ID, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-03-09", records[0].Date)
	assert.Equal(t, "2026-03-08", records[1].Date)
}
