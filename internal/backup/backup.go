package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/domain"
)

const (
	snapshotPrefix = "backup_"
	snapshotExt    = ".db"
	stampLayout    = "20060102_150405"
)

// Store is the slice of the repository the backup manager needs. Close
// and Reopen bracket the file swap during a restore: a handle left open
// across the swap would keep serving cached pages of the old image and
// write them back over the restored file.
type Store interface {
	Path() string
	CheckIntegrity(ctx context.Context) error
	SnapshotTo(ctx context.Context, path string) error
	Close() error
	Reopen(ctx context.Context) error
}

// Manager creates, prunes, and restores snapshots of the store file.
type Manager struct {
	store Store
	dir   string
	log   *zap.Logger
}

// NewManager creates the snapshot directory if needed and returns a manager.
func NewManager(store Store, dir string, log *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Manager{store: store, dir: dir, log: log}, nil
}

// CreateSnapshot writes a point-in-time copy of the store into the
// snapshot directory and returns its path. The store must pass its
// integrity check first; a failing check aborts the snapshot.
func (m *Manager) CreateSnapshot(ctx context.Context) (string, error) {
	if err := m.store.CheckIntegrity(ctx); err != nil {
		return "", fmt.Errorf("integrity check before snapshot: %w", err)
	}

	name := snapshotPrefix + time.Now().UTC().Format(stampLayout) + snapshotExt
	path := filepath.Join(m.dir, name)
	if err := m.store.SnapshotTo(ctx, path); err != nil {
		return "", fmt.Errorf("snapshot to %s: %w", path, err)
	}

	m.log.Info("snapshot created", zap.String("path", path))
	return path, nil
}

// Prune removes snapshot files older than keepDays, judged by file
// modification time.
func (m *Manager) Prune(keepDays int) error {
	matches, err := filepath.Glob(filepath.Join(m.dir, snapshotPrefix+"*"+snapshotExt))
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			m.log.Warn("stat snapshot failed", zap.String("path", p), zap.Error(err))
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(p); err != nil {
			m.log.Warn("remove old snapshot failed", zap.String("path", p), zap.Error(err))
			continue
		}
		m.log.Info("old snapshot removed", zap.String("path", p))
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot path by modification
// time, or "" when the directory holds none.
func (m *Manager) LatestSnapshot() (string, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, snapshotPrefix+"*"+snapshotExt))
	if err != nil {
		return "", err
	}

	var (
		latest string
		mtime  time.Time
	)
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(mtime) {
			latest, mtime = p, info.ModTime()
		}
	}
	return latest, nil
}

// Restore overwrites the live store file with the given snapshot. The
// current file is copied to a side file first; if the restored image
// fails its integrity check, the side file is put back and the original
// failure reported, so the live store never ends up worse than before
// the attempt.
func (m *Manager) Restore(ctx context.Context, snapshotPath string) error {
	// The swap must not happen under a live handle: its cached pages
	// would silently win over the restored file. Close the store for
	// the duration and reopen whichever image ends up live; concurrent
	// store calls fail fast and their loops back off.
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("close store for restore: %w", err)
	}

	err := m.swapFiles(ctx, snapshotPath)

	if roErr := m.store.Reopen(ctx); roErr != nil {
		m.log.Error("reopen store after restore failed", zap.Error(roErr))
		if err == nil {
			err = roErr
		}
	}
	if err != nil {
		return err
	}

	m.log.Info("store restored", zap.String("snapshot", snapshotPath))
	return nil
}

// swapFiles replaces the live file with the snapshot, keeping a
// rollback copy. The store handle must be closed while this runs.
func (m *Manager) swapFiles(ctx context.Context, snapshotPath string) error {
	live := m.store.Path()
	side := live + ".restore"

	if err := copyFile(live, side); err != nil {
		return fmt.Errorf("save rollback copy: %w", err)
	}
	// Snapshots are self-contained, so stale WAL segments from the old
	// image must not be replayed on top of the restored file. They are
	// set aside, not deleted, so a failed attempt puts back exactly
	// what was there.
	walSide := setAside(live + "-wal")
	shmSide := setAside(live + "-shm")

	if err := m.replaceLive(ctx, snapshotPath, live); err != nil {
		if rbErr := copyFile(side, live); rbErr != nil {
			m.log.Error("rollback after failed restore also failed",
				zap.String("side", side), zap.Error(rbErr))
		}
		putBack(walSide, live+"-wal")
		putBack(shmSide, live+"-shm")
		_ = os.Remove(side)
		return err
	}

	_ = os.Remove(side)
	if walSide != "" {
		_ = os.Remove(walSide)
	}
	if shmSide != "" {
		_ = os.Remove(shmSide)
	}
	return nil
}

func (m *Manager) replaceLive(ctx context.Context, snapshotPath, live string) error {
	if err := copyFile(snapshotPath, live); err != nil {
		return fmt.Errorf("copy snapshot over live store: %w", err)
	}
	if err := verifyFile(ctx, live); err != nil {
		return fmt.Errorf("restored store failed verification: %w", err)
	}
	return nil
}

// setAside renames p out of the way and returns the new name, or ""
// if p does not exist.
func setAside(p string) string {
	s := p + ".restore"
	if err := os.Rename(p, s); err != nil {
		return ""
	}
	return s
}

func putBack(side, orig string) {
	if side == "" {
		return
	}
	_ = os.Rename(side, orig)
}

// verifyFile runs the native integrity check against path over a fresh
// connection, independent of the live store handle.
func verifyFile(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", domain.ErrCorrupted, result)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
