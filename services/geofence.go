package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

var (
	// ErrNotMonitoring is returned for samples sent while the watcher is stopped.
	ErrNotMonitoring = errors.New("location monitoring is not active")
	// ErrAccountLocked rejects any operation on a locked account.
	ErrAccountLocked = errors.New("account is locked")
	// ErrUserNotFound means the user record does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// CheckInQuery answers today's-check-in eligibility questions.
type CheckInQuery interface {
	TodayCheckedIn(userID string, now time.Time) (bool, error)
}

// SampleResult describes what one position sample did.
type SampleResult struct {
	DistanceToSite float64    `json:"distance_to_site"`
	WithinSite     bool       `json:"within_site"`
	Entered        bool       `json:"entered"`
	Exited         bool       `json:"exited"`
	DeadlineArmed  *time.Time `json:"deadline_armed,omitempty"`
}

// GeofenceService turns raw position samples into enter/exit edges and drives
// the deadline scheduler. One logical watcher per user session.
type GeofenceService struct {
	db        *gorm.DB
	clock     utils.Clock
	scheduler DeadlineScheduler
	checkins  CheckInQuery
	state     *StateRegistry
	windowMin int
}

// NewGeofenceService wires the monitor's fixed dependency graph.
func NewGeofenceService(db *gorm.DB, clock utils.Clock, scheduler DeadlineScheduler, checkins CheckInQuery, state *StateRegistry, windowMin int) *GeofenceService {
	return &GeofenceService{
		db:        db,
		clock:     clock,
		scheduler: scheduler,
		checkins:  checkins,
		state:     state,
		windowMin: windowMin,
	}
}

// StartMonitoring begins watching a user session. Starting while already
// running is a no-op.
func (g *GeofenceService) StartMonitoring(userID string) error {
	var user models.User
	if err := g.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Locked() {
		return ErrAccountLocked
	}

	st := g.state.Get(userID)
	if st.Monitoring() {
		utils.Sugar.Debugf("monitoring already active user=%s", userID)
		return nil
	}
	st.SetMonitoring(true)
	utils.Sugar.Infof("monitoring started user=%s", userID)
	return nil
}

// StopMonitoring clears watcher state including the containment memory, so a
// later restart cannot fire an exit edge for a stale state.
func (g *GeofenceService) StopMonitoring(userID string) {
	g.state.Get(userID).SetMonitoring(false)
	utils.Sugar.Infof("monitoring stopped user=%s", userID)
}

// HandleSample processes one position sample: containment, edge detection,
// and the downstream deadline side effects.
func (g *GeofenceService) HandleSample(userID string, pos utils.Coordinate) (SampleResult, error) {
	var user models.User
	if err := g.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SampleResult{}, ErrUserNotFound
		}
		return SampleResult{}, err
	}
	if user.Locked() {
		return SampleResult{}, ErrAccountLocked
	}

	st := g.state.Get(userID)
	if !st.Monitoring() {
		return SampleResult{}, ErrNotMonitoring
	}

	site := utils.Coordinate{Latitude: user.SiteLatitude, Longitude: user.SiteLongitude}
	distance := utils.Distance(site, pos)
	within := distance <= user.SiteRadiusMeters

	wasWithin := st.RecordSample(distance, within)

	res := SampleResult{DistanceToSite: distance, WithinSite: within}

	switch {
	case within && !wasWithin:
		res.Entered = true
		deadline, err := g.onEnter(userID, st)
		if err != nil {
			return res, err
		}
		res.DeadlineArmed = deadline
	case !within && wasWithin:
		res.Exited = true
		if err := g.onExit(userID); err != nil {
			return res, err
		}
	}

	return res, nil
}

// onEnter opens a deadline window unless today's obligation is already
// satisfied. Repeated entries on a checked day must never start a new
// countdown.
func (g *GeofenceService) onEnter(userID string, st *SessionState) (*time.Time, error) {
	now := g.clock.Now()

	checked, err := g.checkins.TodayCheckedIn(userID, now)
	if err != nil {
		return nil, err
	}
	if checked {
		utils.Sugar.Infof("site entry user=%s already checked today, no timer", userID)
		return nil, nil
	}

	deadline := now.Add(time.Duration(g.windowMin) * time.Minute)

	if err := g.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_entered_site", now).Error; err != nil {
		return nil, err
	}
	st.SetLastEntered(now)

	if err := g.scheduler.Start(userID, deadline); err != nil {
		return nil, err
	}

	utils.Sugar.Infof("site entry user=%s deadline=%s", userID, deadline.Format(time.RFC3339))
	return &deadline, nil
}

// onExit cancels an armed timer: outside the geofence an in-person sticker
// check is impossible, so the obligation is suspended, not fulfilled.
// Re-entry before the original deadline gets a fresh window.
func (g *GeofenceService) onExit(userID string) error {
	if !g.scheduler.Active(userID) {
		return nil
	}
	utils.Sugar.Infof("site exit user=%s, cancelling deadline timer", userID)
	return g.scheduler.Cancel(userID)
}
