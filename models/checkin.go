package models

import "time"

// DateLayout is the calendar key format for check-in days.
const DateLayout = "2006-01-02"

// CheckIn stores one sticker confirmation per user per calendar day. Immutable after creation.
type CheckIn struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:idx_checkins_user_date,priority:1" json:"user_id"`
	Date       string    `gorm:"size:10;not null;uniqueIndex:idx_checkins_user_date,priority:2" json:"date"`
	CheckedAt  time.Time `json:"checked_at"`
	HasSticker bool      `json:"has_sticker"`
	EnteredAt  time.Time `json:"entered_at"`
	Note       string    `gorm:"size:255" json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
