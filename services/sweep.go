package services

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

// LockReasonSweep marks locks applied by the server-side enforcement path.
const LockReasonSweep = "check-in deadline elapsed (server)"

// Sweeper is the periodic, client-independent enforcement backstop: a client
// process may be killed or offline when its local timer would have fired, so
// deadline enforcement must not depend on any single client staying alive.
type Sweeper struct {
	db       *gorm.DB
	clock    utils.Clock
	locker   AccountLocker
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper that scans every interval.
func NewSweeper(db *gorm.DB, clock utils.Clock, locker AccountLocker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		db:       db,
		clock:    clock,
		locker:   locker,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		utils.Sugar.Infof("deadline sweep started interval=%s", s.interval)
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if n, err := s.RunOnce(); err != nil {
					utils.Sugar.Errorf("deadline sweep failed: %v", err)
				} else if n > 0 {
					utils.Sugar.Warnf("deadline sweep locked %d account(s)", n)
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// RunOnce performs a single sweep pass: every ACTIVE account whose deadline
// has passed gets the same lock transition as the client expiry path. Per-user
// failures are logged and retried on the next pass.
func (s *Sweeper) RunOnce() (int, error) {
	now := s.clock.Now()

	var expired []models.User
	if err := s.db.
		Where("account_status = ? AND check_in_deadline IS NOT NULL AND check_in_deadline < ?",
			models.StatusActive, now).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	locked := 0
	for _, user := range expired {
		if err := s.locker.Lock(user.ID, LockReasonSweep); err != nil {
			utils.Sugar.Errorf("sweep lock failed user=%s err=%v", user.ID, err)
			continue
		}
		locked++
	}
	return locked, nil
}
