package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/stickerguard/utils"
)

// Notifier is the external notification capability. Fire-and-forget and
// best-effort: never on the correctness-critical lock path.
type Notifier interface {
	ScheduleAt(userID string, at time.Time, title, body string) error
	CancelAll(userID string) error
	ShowNow(userID string, title, body string) error
}

// Reminder is one advisory ping within the deadline window.
type Reminder struct {
	At    time.Time
	Title string
	Body  string
}

// reminderMessage maps an offset (minutes into the window) to its copy.
func reminderMessage(offsetMin, windowMin int) (title, body string) {
	remaining := windowMin - offsetMin
	switch {
	case offsetMin == 0:
		return "Sticker check required", fmt.Sprintf("Check in within %d minutes or your account will be locked", windowMin)
	case remaining <= 15:
		return "Final warning", fmt.Sprintf("Only %d minutes left! Check in now or your account will be locked", remaining)
	default:
		return "Check-in reminder", fmt.Sprintf("%d minutes remaining. Unchecked data will be erased", remaining)
	}
}

// BuildReminders computes the advisory pings for a deadline window. Offsets
// past the deadline are skipped; offset 0 means "show immediately".
func BuildReminders(now, deadline time.Time, offsetsMin []int, windowMin int) []Reminder {
	out := make([]Reminder, 0, len(offsetsMin))
	for _, off := range offsetsMin {
		at := now.Add(time.Duration(off) * time.Minute)
		if at.After(deadline) {
			continue
		}
		title, body := reminderMessage(off, windowMin)
		out = append(out, Reminder{At: at, Title: title, Body: body})
	}
	return out
}

type pushMessage struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// RedisNotifier queues scheduled reminders in a per-user sorted set (scored by
// fire time, drained by the push relay) and publishes immediate messages on a
// per-user channel.
type RedisNotifier struct {
	rc *redis.Client
}

// NewRedisNotifier wraps a redis client as a Notifier.
func NewRedisNotifier(rc *redis.Client) *RedisNotifier {
	return &RedisNotifier{rc: rc}
}

func pendingKey(userID string) string { return "notify:pending:" + userID }
func channelKey(userID string) string { return "notify:push:" + userID }

// ScheduleAt enqueues a reminder to fire at the given time.
func (n *RedisNotifier) ScheduleAt(userID string, at time.Time, title, body string) error {
	b, err := json.Marshal(pushMessage{Title: title, Body: body, At: at})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return n.rc.ZAdd(ctx, pendingKey(userID), redis.Z{
		Score:  float64(at.Unix()),
		Member: b,
	}).Err()
}

// CancelAll revokes every pending reminder for the user.
func (n *RedisNotifier) CancelAll(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return n.rc.Del(ctx, pendingKey(userID)).Err()
}

// ShowNow publishes an immediate message for the push relay.
func (n *RedisNotifier) ShowNow(userID string, title, body string) error {
	b, err := json.Marshal(pushMessage{Title: title, Body: body, At: time.Now()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return n.rc.Publish(ctx, channelKey(userID), b).Err()
}

// LogNotifier writes notifications to the application log. Fallback when redis
// is unavailable; also handy in tests.
type LogNotifier struct{}

func (LogNotifier) ScheduleAt(userID string, at time.Time, title, body string) error {
	if utils.Sugar != nil {
		utils.Sugar.Infof("notify schedule user=%s at=%s title=%q", userID, at.Format(time.RFC3339), title)
	}
	return nil
}

func (LogNotifier) CancelAll(userID string) error {
	if utils.Sugar != nil {
		utils.Sugar.Infof("notify cancel-all user=%s", userID)
	}
	return nil
}

func (LogNotifier) ShowNow(userID string, title, body string) error {
	if utils.Sugar != nil {
		utils.Sugar.Infof("notify now user=%s title=%q", userID, title)
	}
	return nil
}
