package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/timer-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
// The handle can be closed and reopened while the repo is shared, which
// the backup manager uses to swap the underlying file during a restore.
type SQLiteRepo struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	maxTimers int
}

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
// maxTimers caps the number of simultaneously active timers per user.
func OpenSQLite(ctx context.Context, path string, maxTimers int) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db, path: path, maxTimers: maxTimers}, nil
}

// openDB opens a handle with the pool settings and PRAGMAs every
// connection to the store file needs.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single connection serializes every transaction, which the
	// read-check-write blocks below rely on. SQLite is a single-writer
	// engine anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return db, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources. A closed repo can
// be brought back with Reopen.
func (r *SQLiteRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// Reopen re-establishes the handle against the current on-disk file.
// The previous handle must already be closed; the backup manager calls
// Close/Reopen around swapping the file during a restore, so cached
// pages of the old image are dropped.
func (r *SQLiteRepo) Reopen(ctx context.Context) error {
	db, err := openDB(ctx, r.path)
	if err != nil {
		return fmt.Errorf("reopen store: %w", err)
	}
	r.mu.Lock()
	r.db = db
	r.mu.Unlock()
	return nil
}

// handle returns the current database handle. Callers that race a
// restore get either the old (closed, queries error out) or the new
// handle, never a torn value.
func (r *SQLiteRepo) handle() *sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// Path returns the location of the live database file.
func (r *SQLiteRepo) Path() string {
	return r.path
}

// AddUser inserts a user row if absent. Re-adding an existing id is a
// no-op: the display name stored on first contact is kept.
func (r *SQLiteRepo) AddUser(ctx context.Context, id int64, displayName string) error {
	_, err := r.handle().ExecContext(ctx, `
		INSERT INTO users (user_id, display_name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		id, displayName, time.Now().UTC().Unix(),
	)
	return err
}

// GetUser returns a user row by id, or sql.ErrNoRows if absent.
func (r *SQLiteRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	err := r.handle().QueryRowContext(ctx, `
		SELECT user_id, display_name, active_timers, created_at
		FROM users
		WHERE user_id = ?`, id,
	).Scan(&u.ID, &u.DisplayName, &u.ActiveTimers, &created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// AddTimer creates an active timer inside one transaction: check the
// active count against the limit, assign the next per-user number,
// insert, and refresh the user's cached active count. Returns
// domain.ErrLimitExceeded without mutating state when the user is at
// the cap.
func (r *SQLiteRepo) AddTimer(ctx context.Context, userID int64, durationHours int) (*domain.Timer, error) {
	tx, err := r.handle().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM timers
		WHERE user_id = ? AND status = 'active'`,
		userID,
	).Scan(&active); err != nil {
		return nil, err
	}
	if active >= r.maxTimers {
		return nil, domain.ErrLimitExceeded
	}

	// Numbers are monotonic per user and never recycled: MAX over all
	// statuses, not just active ones.
	var number int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(timer_number), 0) + 1 FROM timers
		WHERE user_id = ?`,
		userID,
	).Scan(&number); err != nil {
		return nil, err
	}

	start := time.Now().UTC().Truncate(time.Second)
	end := start.Add(time.Duration(durationHours) * time.Hour)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO timers (
			user_id, start_time, end_time, duration_hours,
			timer_number, status, notified, created_at
		) VALUES (?, ?, ?, ?, ?, 'active', 0, ?)`,
		userID, start.Unix(), end.Unix(), durationHours, number, start.Unix(),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := recountActive(ctx, tx, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.Timer{
		ID:            id,
		UserID:        userID,
		StartTime:     start,
		EndTime:       end,
		DurationHours: durationHours,
		Number:        number,
		Status:        domain.StatusActive,
		CreatedAt:     start,
	}, nil
}

// ListActive returns the user's active timers ordered by timer number.
func (r *SQLiteRepo) ListActive(ctx context.Context, userID int64) ([]domain.Timer, error) {
	rows, err := r.handle().QueryContext(ctx, `
		SELECT timer_id, user_id, start_time, end_time, duration_hours,
		       timer_number, status, notified, created_at
		FROM timers
		WHERE user_id = ? AND status = 'active'
		ORDER BY timer_number ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ScanExpired selects every active, unnotified timer past its end time
// and, in the same transaction, marks exactly that set completed and
// notified, then refreshes the affected users' active counts. The
// update is keyed by the primary keys captured at read time, not by
// re-evaluating the predicate, so rows expiring mid-transaction wait
// for the next scan. Returns the pre-update snapshot.
func (r *SQLiteRepo) ScanExpired(ctx context.Context, now time.Time) ([]domain.ExpiredTimer, error) {
	tx, err := r.handle().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT t.timer_id, t.user_id, t.start_time, t.end_time, t.duration_hours,
		       t.timer_number, t.status, t.notified, t.created_at,
		       u.display_name
		FROM timers t
		JOIN users u ON u.user_id = t.user_id
		WHERE t.status = 'active' AND t.notified = 0 AND t.end_time <= ?`,
		now.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}

	var (
		expired []domain.ExpiredTimer
		ids     []any
		owners  = map[int64]struct{}{}
	)
	for rows.Next() {
		var e domain.ExpiredTimer
		e.Timer, err = scanTimer(rows, &e.DisplayName)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		expired = append(expired, e)
		ids = append(ids, e.ID)
		owners[e.UserID] = struct{}{}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(expired) == 0 {
		return nil, tx.Commit()
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE timers
		SET status = 'completed', notified = 1
		WHERE timer_id IN (%s)`, placeholders),
		ids...,
	); err != nil {
		return nil, err
	}

	for userID := range owners {
		if err := recountActive(ctx, tx, userID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// DeleteTimer cancels the user's active timer with the given number and
// refreshes the cached active count. Reports whether a row changed.
func (r *SQLiteRepo) DeleteTimer(ctx context.Context, userID int64, timerNumber int) (bool, error) {
	tx, err := r.handle().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE timers
		SET status = 'cancelled'
		WHERE user_id = ? AND timer_number = ? AND status = 'active'`,
		userID, timerNumber,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	if err := recountActive(ctx, tx, userID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// CheckIntegrity runs SQLite's native consistency check. A failing
// check is reported as domain.ErrCorrupted, which the maintenance loop
// treats as a restore trigger, not a fatal condition.
func (r *SQLiteRepo) CheckIntegrity(ctx context.Context) error {
	var result string
	if err := r.handle().QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", domain.ErrCorrupted, result)
	}
	return nil
}

// Optimize refreshes planner statistics and reclaims free pages.
func (r *SQLiteRepo) Optimize(ctx context.Context) error {
	if _, err := r.handle().ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return err
	}
	_, err := r.handle().ExecContext(ctx, "VACUUM")
	return err
}

// SnapshotTo writes a self-consistent point-in-time copy of the
// database to path using VACUUM INTO, which is safe against concurrent
// writers (unlike a raw file copy).
func (r *SQLiteRepo) SnapshotTo(ctx context.Context, path string) error {
	_, err := r.handle().ExecContext(ctx, "VACUUM INTO ?", path)
	return err
}

// recountActive rewrites a user's cached active-timer count from the
// true row count, inside the caller's transaction.
func recountActive(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET active_timers = (
			SELECT COUNT(*) FROM timers
			WHERE user_id = users.user_id AND status = 'active'
		)
		WHERE user_id = ?`,
		userID,
	)
	return err
}
