package store

import (
	"time"

	"github.com/ykvlv/timer-bot/internal/domain"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTimer reads one timers row in column order:
// timer_id, user_id, start_time, end_time, duration_hours,
// timer_number, status, notified, created_at.
// Any extra dests are appended for trailing joined columns.
func scanTimer(sc rowScanner, extra ...any) (domain.Timer, error) {
	var (
		t                   domain.Timer
		start, end, created int64
		status              string
		notified            int
	)
	dest := []any{
		&t.ID, &t.UserID, &start, &end, &t.DurationHours,
		&t.Number, &status, &notified, &created,
	}
	dest = append(dest, extra...)
	if err := sc.Scan(dest...); err != nil {
		return domain.Timer{}, err
	}
	t.StartTime = time.Unix(start, 0).UTC()
	t.EndTime = time.Unix(end, 0).UTC()
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.Status = domain.TimerStatus(status)
	t.Notified = notified != 0
	return t, nil
}
