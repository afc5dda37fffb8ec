package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ykvlv/timer-bot/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "timer.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func activeCount(t *testing.T, repo *SQLiteRepo, userID int64) int {
	t.Helper()
	u, err := repo.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.ActiveTimers
}

func TestAddUserIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.AddUser(ctx, 42, "alice"))
	require.NoError(t, repo.AddUser(ctx, 42, "impostor"))

	u, err := repo.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.DisplayName)
	assert.Equal(t, 0, u.ActiveTimers)
}

func TestAddTimerEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddUser(ctx, 1, "u1"))

	for i := 1; i <= 3; i++ {
		tm, err := repo.AddTimer(ctx, 1, i)
		require.NoError(t, err)
		assert.Equal(t, i, tm.Number)
		assert.Equal(t, domain.StatusActive, tm.Status)
		assert.Equal(t, tm.StartTime.Add(time.Duration(i)*time.Hour), tm.EndTime)
	}

	_, err := repo.AddTimer(ctx, 1, 5)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)

	// The rejected call must not have mutated anything.
	timers, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, timers, 3)
	assert.Equal(t, 3, activeCount(t, repo, 1))
}

func TestTimerNumbersNeverRecycled(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddUser(ctx, 1, "u1"))

	for i := 0; i < 3; i++ {
		_, err := repo.AddTimer(ctx, 1, 1)
		require.NoError(t, err)
	}

	found, err := repo.DeleteTimer(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, found)

	tm, err := repo.AddTimer(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, tm.Number, "numbers are monotonic, deleted ones are not reused")

	timers, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, timers, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{timers[0].Number, timers[1].Number, timers[2].Number})
}

func TestDeleteTimer(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddUser(ctx, 1, "u1"))

	_, err := repo.AddTimer(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 1, activeCount(t, repo, 1))

	found, err := repo.DeleteTimer(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, activeCount(t, repo, 1))

	// Already cancelled: not found the second time.
	found, err = repo.DeleteTimer(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.DeleteTimer(ctx, 1, 99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScanExpired(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddUser(ctx, 1, "alice"))
	require.NoError(t, repo.AddUser(ctx, 2, "bob"))

	_, err := repo.AddTimer(ctx, 1, 1)
	require.NoError(t, err)
	_, err = repo.AddTimer(ctx, 1, 3)
	require.NoError(t, err)
	_, err = repo.AddTimer(ctx, 2, 1)
	require.NoError(t, err)

	// Nothing due yet.
	expired, err := repo.ScanExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)

	// Two hours in: the 1h timers of both users are due, the 3h one is not.
	cut := time.Now().Add(2 * time.Hour)
	expired, err = repo.ScanExpired(ctx, cut)
	require.NoError(t, err)
	require.Len(t, expired, 2)

	names := map[int64]string{}
	for _, e := range expired {
		names[e.UserID] = e.DisplayName
		assert.Equal(t, 1, e.Number)
	}
	assert.Equal(t, map[int64]string{1: "alice", 2: "bob"}, names)

	assert.Equal(t, 1, activeCount(t, repo, 1))
	assert.Equal(t, 0, activeCount(t, repo, 2))

	// Same window again: already-notified timers are never returned twice.
	expired, err = repo.ScanExpired(ctx, cut)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// Growing window picks up only the remaining timer.
	expired, err = repo.ScanExpired(ctx, time.Now().Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, int64(1), expired[0].UserID)
	assert.Equal(t, 2, expired[0].Number)
	assert.Equal(t, 0, activeCount(t, repo, 1))
}

// Full lifecycle walk: limit, deletion, numbering, expiry.
func TestTimerLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddUser(ctx, 7, "u"))

	for _, h := range []int{1, 2, 3} {
		_, err := repo.AddTimer(ctx, 7, h)
		require.NoError(t, err)
	}
	_, err := repo.AddTimer(ctx, 7, 1)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)

	found, err := repo.DeleteTimer(ctx, 7, 2)
	require.NoError(t, err)
	require.True(t, found)

	tm, err := repo.AddTimer(ctx, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, tm.Number)

	expired, err := repo.ScanExpired(ctx, time.Now().Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, 1, expired[0].Number)

	assert.Equal(t, 2, activeCount(t, repo, 7))
	timers, err := repo.ListActive(ctx, 7)
	require.NoError(t, err)
	require.Len(t, timers, 2)
	assert.Equal(t, []int{3, 4}, []int{timers[0].Number, timers[1].Number})
}

func TestCheckIntegrityAndOptimize(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.CheckIntegrity(ctx))
	require.NoError(t, repo.Optimize(ctx))
	require.NoError(t, repo.CheckIntegrity(ctx))
}

func TestSnapshotToProducesConsistentCopy(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddUser(ctx, 1, "u1"))
	_, err := repo.AddTimer(ctx, 1, 1)
	require.NoError(t, err)

	snap := filepath.Join(t.TempDir(), "snap.db")
	require.NoError(t, repo.SnapshotTo(ctx, snap))

	copyRepo, err := OpenSQLite(ctx, snap, 3)
	require.NoError(t, err)
	defer copyRepo.Close()

	require.NoError(t, copyRepo.CheckIntegrity(ctx))
	timers, err := copyRepo.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, timers, 1)
}
