package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account status values. The transition is one-way: active -> locked.
const (
	StatusActive = "active"
	StatusLocked = "locked"
)

// User represents a mobile worker bound to a monitored site. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Username     string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"size:255" json:"-"`

	// Geofence the worker is timed against. Configured at registration, immutable afterwards.
	SiteLatitude     float64 `json:"site_latitude"`
	SiteLongitude    float64 `json:"site_longitude"`
	SiteRadiusMeters float64 `json:"site_radius_meters"`

	AccountStatus   string     `gorm:"size:16;index;default:active" json:"account_status"`
	LastEnteredSite *time.Time `json:"last_entered_site"`
	CheckInDeadline *time.Time `gorm:"index" json:"check_in_deadline"`
	LockedAt        *time.Time `json:"locked_at"`
	LockReason      string     `gorm:"size:255" json:"lock_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the account reached the terminal state.
func (u *User) Locked() bool {
	return u.AccountStatus == StatusLocked
}

// BeforeCreate hook assigns the ID and ensures timestamps are set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.AccountStatus == "" {
		u.AccountStatus = StatusActive
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
