package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

type stubCheckInQuery struct {
	checked bool
	err     error
}

func (s *stubCheckInQuery) TodayCheckedIn(userID string, now time.Time) (bool, error) {
	return s.checked, s.err
}

var (
	siteCenter = utils.Coordinate{Latitude: 37.2253811, Longitude: 127.0706423}
	// Roughly 1.1km north of the site center.
	farAway = utils.Coordinate{Latitude: 37.2353811, Longitude: 127.0706423}
)

func newTestGeofence(t *testing.T) (*GeofenceService, *gorm.DB, *stubScheduler, *stubCheckInQuery, *StateRegistry, models.User) {
	t.Helper()
	db := openTestDB(t)
	user := createTestUser(t, db)
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	scheduler := newStubScheduler()
	checkins := &stubCheckInQuery{}
	state := NewStateRegistry()
	svc := NewGeofenceService(db, clock, scheduler, checkins, state, 45)
	return svc, db, scheduler, checkins, state, user
}

func TestStartMonitoringIsIdempotent(t *testing.T) {
	svc, _, _, _, state, user := newTestGeofence(t)

	require.NoError(t, svc.StartMonitoring(user.ID))
	require.NoError(t, svc.StartMonitoring(user.ID))

	assert.True(t, state.Get(user.ID).Monitoring())
}

func TestStartMonitoringRejectsLockedAndUnknown(t *testing.T) {
	svc, db, _, _, _, user := newTestGeofence(t)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("account_status", models.StatusLocked).Error)
	assert.ErrorIs(t, svc.StartMonitoring(user.ID), ErrAccountLocked)

	assert.ErrorIs(t, svc.StartMonitoring("no-such-user"), ErrUserNotFound)
}

func TestSampleRequiresMonitoring(t *testing.T) {
	svc, _, _, _, _, user := newTestGeofence(t)

	_, err := svc.HandleSample(user.ID, siteCenter)
	assert.ErrorIs(t, err, ErrNotMonitoring)
}

func TestEntryEdgeArmsDeadline(t *testing.T) {
	svc, db, scheduler, _, state, user := newTestGeofence(t)
	require.NoError(t, svc.StartMonitoring(user.ID))

	res, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)

	assert.True(t, res.Entered)
	assert.True(t, res.WithinSite)
	require.NotNil(t, res.DeadlineArmed)
	assert.True(t, scheduler.Active(user.ID))

	expected := svc.clock.Now().Add(45 * time.Minute)
	assert.Equal(t, expected.Unix(), res.DeadlineArmed.Unix())

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.NotNil(t, stored.LastEnteredSite)
	assert.NotNil(t, state.Get(user.ID).Snapshot().LastEnteredSite)
}

func TestStayingInsideDoesNotReArm(t *testing.T) {
	svc, _, scheduler, _, _, user := newTestGeofence(t)
	require.NoError(t, svc.StartMonitoring(user.ID))

	res, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)
	assert.True(t, res.Entered)

	res, err = svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)
	assert.False(t, res.Entered)

	starts, _ := scheduler.counts()
	assert.Equal(t, 1, starts)
}

func TestEntryOnCheckedDayArmsNothing(t *testing.T) {
	svc, _, scheduler, checkins, _, user := newTestGeofence(t)
	checkins.checked = true
	require.NoError(t, svc.StartMonitoring(user.ID))

	res, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)

	assert.True(t, res.Entered)
	assert.Nil(t, res.DeadlineArmed)
	assert.False(t, scheduler.Active(user.ID))
}

func TestExitEdgeCancelsArmedTimer(t *testing.T) {
	svc, _, scheduler, _, _, user := newTestGeofence(t)
	require.NoError(t, svc.StartMonitoring(user.ID))

	_, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)
	require.True(t, scheduler.Active(user.ID))

	res, err := svc.HandleSample(user.ID, farAway)
	require.NoError(t, err)

	assert.True(t, res.Exited)
	assert.False(t, res.WithinSite)
	assert.False(t, scheduler.Active(user.ID))
}

func TestExitWithoutArmedTimerCancelsNothing(t *testing.T) {
	svc, _, scheduler, checkins, _, user := newTestGeofence(t)
	checkins.checked = true
	require.NoError(t, svc.StartMonitoring(user.ID))

	_, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)

	_, err = svc.HandleSample(user.ID, farAway)
	require.NoError(t, err)

	_, cancels := scheduler.counts()
	assert.Zero(t, cancels)
}

func TestStopClearsContainmentMemory(t *testing.T) {
	svc, _, scheduler, _, _, user := newTestGeofence(t)
	require.NoError(t, svc.StartMonitoring(user.ID))

	_, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)

	svc.StopMonitoring(user.ID)
	require.NoError(t, svc.StartMonitoring(user.ID))

	// The restart forgot the old containment: this is a fresh entry edge,
	// never a stale exit.
	res, err := svc.HandleSample(user.ID, siteCenter)
	require.NoError(t, err)
	assert.True(t, res.Entered)

	starts, _ := scheduler.counts()
	assert.Equal(t, 2, starts)
}
