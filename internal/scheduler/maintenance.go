package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/domain"
	"github.com/ykvlv/timer-bot/internal/store"
)

// Backups is the slice of the backup manager the maintenance loop uses.
type Backups interface {
	CreateSnapshot(ctx context.Context) (string, error)
	Prune(keepDays int) error
	Restore(ctx context.Context, snapshotPath string) error
	LatestSnapshot() (string, error)
}

// Maintenance periodically verifies store health, recovers from
// corruption, takes snapshots, and optimizes the store.
type Maintenance struct {
	store    store.Maintainer
	backups  Backups
	log      *zap.Logger
	interval time.Duration
	backoff  time.Duration
	keepDays int
}

// NewMaintenance creates the maintenance loop.
func NewMaintenance(st store.Maintainer, b Backups, log *zap.Logger, interval time.Duration, keepDays int) *Maintenance {
	return &Maintenance{
		store:    st,
		backups:  b,
		log:      log,
		interval: interval,
		backoff:  time.Minute,
		keepDays: keepDays,
	}
}

var errDegradedCycle = errors.New("maintenance cycle had failures")

// Run starts the loop until ctx is canceled. A failed cycle shortens
// the next sleep to the backoff interval instead of the full period;
// the loop never exits on error.
func (m *Maintenance) Run(ctx context.Context) {
	t := time.NewTimer(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("maintenance stopping")
			return
		case <-t.C:
			if err := m.tick(ctx); err != nil {
				t.Reset(m.backoff)
			} else {
				t.Reset(m.interval)
			}
		}
	}
}

// tick runs one maintenance cycle: integrity check (with restore on
// corruption), snapshot + prune, optimize. Each step's failure is
// logged and the cycle proceeds to the following step.
func (m *Maintenance) tick(ctx context.Context) error {
	// A shutdown signal must not abort the cycle in progress; the sleep
	// select in Run is the only cancellation point.
	ctx = context.WithoutCancel(ctx)

	degraded := false

	if err := m.store.CheckIntegrity(ctx); err != nil {
		if errors.Is(err, domain.ErrCorrupted) {
			m.log.Error("store integrity check failed", zap.Error(err))
			if !m.restoreFromBackup(ctx) {
				degraded = true
			}
		} else {
			m.log.Error("store integrity check errored", zap.Error(err))
			degraded = true
		}
	}

	if _, err := m.backups.CreateSnapshot(ctx); err != nil {
		m.log.Error("snapshot creation failed", zap.Error(err))
		degraded = true
	} else if err := m.backups.Prune(m.keepDays); err != nil {
		m.log.Error("snapshot prune failed", zap.Error(err))
		degraded = true
	}

	if err := m.store.Optimize(ctx); err != nil {
		m.log.Error("store optimization failed", zap.Error(err))
		degraded = true
	}

	if degraded {
		return errDegradedCycle
	}
	return nil
}

// restoreFromBackup attempts a restore from the latest snapshot. The
// process keeps serving either way: degraded but alive beats
// termination.
func (m *Maintenance) restoreFromBackup(ctx context.Context) bool {
	latest, err := m.backups.LatestSnapshot()
	if err != nil {
		m.log.Error("snapshot lookup failed, store stays corrupted", zap.Error(err))
		return false
	}
	if latest == "" {
		m.log.Error("no snapshot available, store stays corrupted")
		return false
	}
	if err := m.backups.Restore(ctx, latest); err != nil {
		m.log.Error("restore failed, store stays corrupted",
			zap.String("snapshot", latest), zap.Error(err))
		return false
	}
	m.log.Info("store restored from snapshot", zap.String("snapshot", latest))
	return true
}
