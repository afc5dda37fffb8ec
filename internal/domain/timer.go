package domain

import "time"

// TimerStatus is the lifecycle state of a timer. A timer is never
// physically deleted; completed/cancelled are terminal markers.
type TimerStatus string

const (
	StatusActive    TimerStatus = "active"
	StatusCompleted TimerStatus = "completed"
	StatusCancelled TimerStatus = "cancelled"
)

// User represents a registered chat user.
type User struct {
	ID           int64  // external chat id
	DisplayName  string
	ActiveTimers int       // cached count of timers in StatusActive
	CreatedAt    time.Time // UTC
}

// Timer represents one countdown timer owned by a user.
type Timer struct {
	ID            int64 // globally unique, monotonic
	UserID        int64
	StartTime     time.Time // UTC
	EndTime       time.Time // UTC, fixed at creation
	DurationHours int
	Number        int // per-user number, never recycled
	Status        TimerStatus
	Notified      bool
	CreatedAt     time.Time // UTC
}

// ExpiredTimer is a timer returned by the expiry scan, joined with
// the owner's display name for notification rendering.
type ExpiredTimer struct {
	Timer
	DisplayName string
}

// Remaining returns the time left until the timer ends, clamped at zero.
func (t Timer) Remaining(now time.Time) time.Duration {
	d := t.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
