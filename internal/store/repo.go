package store

import (
	"context"
	"time"

	"github.com/ykvlv/timer-bot/internal/domain"
)

// Repo defines storage operations for users and their timers.
type Repo interface {
	// AddUser registers a user if not present. Re-adding an existing id
	// is a no-op; the stored display name is not overwritten.
	AddUser(ctx context.Context, id int64, displayName string) error

	// AddTimer creates an active timer of the given whole-hour duration.
	// Returns domain.ErrLimitExceeded when the user already holds the
	// maximum number of active timers; no state is mutated in that case.
	AddTimer(ctx context.Context, userID int64, durationHours int) (*domain.Timer, error)

	// ListActive returns the user's active timers ordered by number.
	ListActive(ctx context.Context, userID int64) ([]domain.Timer, error)

	// ScanExpired marks every active, unnotified timer with endTime <= now
	// as completed+notified, in one transaction, and returns the pre-update
	// snapshot joined with the owners' display names. A timer is returned
	// at most once across any sequence of calls.
	ScanExpired(ctx context.Context, now time.Time) ([]domain.ExpiredTimer, error)

	// DeleteTimer cancels the user's active timer with the given number.
	// Reports whether a timer was actually cancelled.
	DeleteTimer(ctx context.Context, userID int64, timerNumber int) (bool, error)

	Close() error
}

// Maintainer exposes the store health operations used by the
// maintenance loop.
type Maintainer interface {
	// CheckIntegrity runs the engine's native consistency check and
	// returns domain.ErrCorrupted if it fails.
	CheckIntegrity(ctx context.Context) error

	// Optimize reclaims space and refreshes query planner statistics.
	Optimize(ctx context.Context) error
}
