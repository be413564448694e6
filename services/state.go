package services

import (
	"sync"
	"time"
)

// SessionSnapshot is a point-in-time copy of a user's runtime session state.
type SessionSnapshot struct {
	Monitoring       bool       `json:"monitoring"`
	WithinSite       bool       `json:"within_site"`
	DistanceToSite   float64    `json:"distance_to_site"`
	LastEnteredSite  *time.Time `json:"last_entered_site,omitempty"`
	TimerActive      bool       `json:"timer_active"`
	RemainingSeconds int        `json:"remaining_seconds"`
	LastCheckInAt    *time.Time `json:"last_check_in_at,omitempty"`
}

// SessionState holds per-user runtime state for the geofence monitor and the
// deadline timer. One struct per concern with explicit accessors instead of
// ambient globals; observers get a snapshot after every mutation.
type SessionState struct {
	mu sync.Mutex

	monitoring      bool
	wasWithinRadius bool
	withinSite      bool
	distanceToSite  float64
	lastEnteredSite *time.Time
	timerActive     bool
	remainingSec    int
	lastCheckInAt   *time.Time

	observers []func(SessionSnapshot)
}

// AddObserver registers a callback invoked after each state mutation.
func (s *SessionState) AddObserver(fn func(SessionSnapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *SessionState) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SessionState) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		Monitoring:       s.monitoring,
		WithinSite:       s.withinSite,
		DistanceToSite:   s.distanceToSite,
		LastEnteredSite:  s.lastEnteredSite,
		TimerActive:      s.timerActive,
		RemainingSeconds: s.remainingSec,
		LastCheckInAt:    s.lastCheckInAt,
	}
}

func (s *SessionState) notifyLocked() {
	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}

// SetMonitoring flips the monitoring flag. Stopping also clears the in-flight
// containment memory so a restart cannot fire a stale exit edge.
func (s *SessionState) SetMonitoring(on bool) {
	s.mu.Lock()
	s.monitoring = on
	if !on {
		s.wasWithinRadius = false
	}
	s.notifyLocked()
	s.mu.Unlock()
}

// Monitoring reports whether the watcher is running.
func (s *SessionState) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// RecordSample stores the latest distance/containment and returns the previous
// containment for edge detection.
func (s *SessionState) RecordSample(distance float64, within bool) (wasWithin bool) {
	s.mu.Lock()
	wasWithin = s.wasWithinRadius
	s.distanceToSite = distance
	s.withinSite = within
	s.wasWithinRadius = within
	s.notifyLocked()
	s.mu.Unlock()
	return wasWithin
}

// SetLastEntered records the entry edge timestamp.
func (s *SessionState) SetLastEntered(t time.Time) {
	s.mu.Lock()
	s.lastEnteredSite = &t
	s.notifyLocked()
	s.mu.Unlock()
}

// SetCountdown publishes the remaining seconds of an armed deadline window.
func (s *SessionState) SetCountdown(active bool, remainingSec int) {
	s.mu.Lock()
	s.timerActive = active
	s.remainingSec = remainingSec
	s.notifyLocked()
	s.mu.Unlock()
}

// SetLastCheckIn records the wall-clock of the latest confirmation.
func (s *SessionState) SetLastCheckIn(t time.Time) {
	s.mu.Lock()
	s.lastCheckInAt = &t
	s.notifyLocked()
	s.mu.Unlock()
}

// Reset wipes all session state, keeping observers.
func (s *SessionState) Reset() {
	s.mu.Lock()
	s.monitoring = false
	s.wasWithinRadius = false
	s.withinSite = false
	s.distanceToSite = 0
	s.lastEnteredSite = nil
	s.timerActive = false
	s.remainingSec = 0
	s.lastCheckInAt = nil
	s.notifyLocked()
	s.mu.Unlock()
}

// StateRegistry keeps one SessionState per user.
type StateRegistry struct {
	mu     sync.Mutex
	states map[string]*SessionState
}

// NewStateRegistry creates an empty registry.
func NewStateRegistry() *StateRegistry {
	return &StateRegistry{states: map[string]*SessionState{}}
}

// Get returns the session state for a user, creating it lazily.
func (r *StateRegistry) Get(userID string) *SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[userID]
	if !ok {
		st = &SessionState{}
		r.states[userID] = st
	}
	return st
}

// Drop resets and removes a user's session state (lock teardown).
func (r *StateRegistry) Drop(userID string) {
	r.mu.Lock()
	st, ok := r.states[userID]
	delete(r.states, userID)
	r.mu.Unlock()
	if ok {
		st.Reset()
	}
}
