package services

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

// LockReasonDeadline is recorded when the client-side expiry path locks an account.
const LockReasonDeadline = "check-in deadline elapsed"

// AccountLocker performs the irreversible lock transition.
type AccountLocker interface {
	Lock(userID, reason string) error
}

// DeadlineScheduler manages the single deadline window per user.
type DeadlineScheduler interface {
	Start(userID string, deadline time.Time) error
	Cancel(userID string) error
	Active(userID string) bool
}

// armedTimer is one ARMED instance. The generation ties the scheduled wake-up
// to the arm that created it: a fired callback whose generation no longer
// matches was cancelled and must do nothing.
type armedTimer struct {
	deadline time.Time
	gen      uint64
	expire   *time.Timer
	stopTick chan struct{}
}

// TimerService owns at most one deadline timer per user:
// IDLE -> ARMED -> {CANCELLED, EXPIRED} -> IDLE.
type TimerService struct {
	db           *gorm.DB
	clock        utils.Clock
	notifier     Notifier
	state        *StateRegistry
	locker       AccountLocker
	windowMin    int
	reminderOffs []int

	mu     sync.Mutex
	gen    uint64
	timers map[string]*armedTimer
}

// NewTimerService builds a TimerService. The AccountLocker is injected after
// construction via SetLocker because the lock engine also needs the scheduler
// for its runtime teardown step.
func NewTimerService(db *gorm.DB, clock utils.Clock, notifier Notifier, state *StateRegistry, windowMin int, reminderOffsetsMin []int) *TimerService {
	return &TimerService{
		db:           db,
		clock:        clock,
		notifier:     notifier,
		state:        state,
		windowMin:    windowMin,
		reminderOffs: reminderOffsetsMin,
		timers:       map[string]*armedTimer{},
	}
}

// SetLocker injects the lock engine. Must be called before any timer can expire.
func (s *TimerService) SetLocker(l AccountLocker) {
	s.locker = l
}

// Start arms the deadline timer, tearing down any existing one first. The
// deadline is persisted before arming so the server sweep can enforce it even
// if this process dies immediately afterwards.
func (s *TimerService) Start(userID string, deadline time.Time) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("check_in_deadline", deadline).Error; err != nil {
		return err
	}

	now := s.clock.Now()

	s.mu.Lock()
	s.teardownLocked(userID)
	s.gen++
	gen := s.gen
	at := &armedTimer{
		deadline: deadline,
		gen:      gen,
		stopTick: make(chan struct{}),
	}
	delay := deadline.Sub(now)
	if delay < 0 {
		delay = 0
	}
	at.expire = time.AfterFunc(delay, func() { s.onExpired(userID, gen) })
	s.timers[userID] = at
	s.mu.Unlock()

	st := s.state.Get(userID)
	st.SetCountdown(true, int(deadline.Sub(now).Seconds()))
	go s.countdown(at, st)

	s.scheduleReminders(userID, now, deadline)

	utils.Sugar.Infof("deadline timer armed user=%s deadline=%s", userID, deadline.Format(time.RFC3339))
	return nil
}

// Cancel tears down an armed timer without treating it as a completed
// check-in, clears the persisted deadline, and revokes pending reminders.
// Safe to call when idle. Tear-down always wins against a pending expiry:
// once the entry is removed here, a fired callback finds a stale generation
// and returns without locking.
func (s *TimerService) Cancel(userID string) error {
	s.mu.Lock()
	s.teardownLocked(userID)
	s.mu.Unlock()

	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("check_in_deadline", nil).Error; err != nil {
		return err
	}

	if err := s.notifier.CancelAll(userID); err != nil {
		utils.Sugar.Warnf("reminder revocation failed user=%s err=%v", userID, err)
	}

	s.state.Get(userID).SetCountdown(false, 0)
	return nil
}

// Active reports whether a timer is ARMED for the user.
func (s *TimerService) Active(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[userID]
	return ok
}

// Deadline returns the armed deadline, if any.
func (s *TimerService) Deadline(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.timers[userID]
	if !ok {
		return time.Time{}, false
	}
	return at.deadline, true
}

// StopAll tears down every armed timer without side effects. Shutdown hook:
// persisted deadlines stay in place for the sweep to enforce.
func (s *TimerService) StopAll() {
	s.mu.Lock()
	for userID := range s.timers {
		s.teardownLocked(userID)
	}
	s.mu.Unlock()
}

// teardownLocked stops the wake-up and countdown for a user. Caller holds mu.
func (s *TimerService) teardownLocked(userID string) {
	at, ok := s.timers[userID]
	if !ok {
		return
	}
	at.expire.Stop()
	close(at.stopTick)
	delete(s.timers, userID)
}

// onExpired is the sole owner of the ARMED -> EXPIRED transition.
func (s *TimerService) onExpired(userID string, gen uint64) {
	s.mu.Lock()
	at, ok := s.timers[userID]
	if !ok || at.gen != gen {
		// Cancelled or re-armed after this wake-up was scheduled.
		s.mu.Unlock()
		return
	}
	close(at.stopTick)
	delete(s.timers, userID)
	s.mu.Unlock()

	s.state.Get(userID).SetCountdown(false, 0)

	// The sweep may have won the race; an already locked account is benign.
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		utils.Sugar.Errorf("expiry status check failed user=%s err=%v", userID, err)
		return
	}
	if user.Locked() {
		utils.Sugar.Debugf("expiry fired on already locked account user=%s", userID)
		return
	}

	utils.Sugar.Warnf("deadline elapsed user=%s, locking account", userID)
	if err := s.locker.Lock(userID, LockReasonDeadline); err != nil {
		// Not swallowed silently: the sweep retries on its next tick.
		utils.Sugar.Errorf("deadline lock failed user=%s err=%v", userID, err)
	}
}

// countdown republishes remaining seconds once per second for UI consumption.
// Deliberately coarse; correctness lives in the expiry wake-up.
func (s *TimerService) countdown(at *armedTimer, st *SessionState) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-at.stopTick:
			return
		case <-ticker.C:
			remaining := int(at.deadline.Sub(s.clock.Now()).Seconds())
			if remaining <= 0 {
				st.SetCountdown(true, 0)
				return
			}
			st.SetCountdown(true, remaining)
		}
	}
}

func (s *TimerService) scheduleReminders(userID string, now, deadline time.Time) {
	for _, r := range BuildReminders(now, deadline, s.reminderOffs, s.windowMin) {
		var err error
		if !r.At.After(now) {
			err = s.notifier.ShowNow(userID, r.Title, r.Body)
		} else {
			err = s.notifier.ScheduleAt(userID, r.At, r.Title, r.Body)
		}
		if err != nil {
			utils.Sugar.Warnf("reminder scheduling failed user=%s err=%v", userID, err)
		}
	}
}
