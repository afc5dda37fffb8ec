package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/domain"
)

type fakeSource struct {
	expired []domain.ExpiredTimer
	err     error
	calls   int
}

func (f *fakeSource) ScanExpired(_ context.Context, _ time.Time) ([]domain.ExpiredTimer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// The store marks returned timers notified, so a second scan
	// yields nothing.
	out := f.expired
	f.expired = nil
	return out, nil
}

type fakeSink struct {
	sent    []int64
	failFor int64
}

func (f *fakeSink) Send(userID int64, _ string) error {
	if userID == f.failFor {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, userID)
	return nil
}

func expiredFor(userID int64, number int) domain.ExpiredTimer {
	return domain.ExpiredTimer{
		Timer: domain.Timer{UserID: userID, Number: number, Status: domain.StatusActive},
	}
}

func TestTickNotifiesEachTimerOnce(t *testing.T) {
	src := &fakeSource{expired: []domain.ExpiredTimer{expiredFor(1, 1), expiredFor(2, 3)}}
	sink := &fakeSink{}
	s := NewExpiryScanner(src, sink, zap.NewNop(), time.Minute)

	require.NoError(t, s.tick(context.Background()))
	assert.Equal(t, []int64{1, 2}, sink.sent)

	// Second tick: already consumed, nothing re-sent.
	require.NoError(t, s.tick(context.Background()))
	assert.Equal(t, []int64{1, 2}, sink.sent)
}

func TestTickContinuesPastDeliveryFailure(t *testing.T) {
	src := &fakeSource{expired: []domain.ExpiredTimer{expiredFor(1, 1), expiredFor(2, 1), expiredFor(3, 1)}}
	sink := &fakeSink{failFor: 2}
	s := NewExpiryScanner(src, sink, zap.NewNop(), time.Minute)

	// A failed delivery is logged and skipped, not surfaced as a tick error.
	require.NoError(t, s.tick(context.Background()))
	assert.Equal(t, []int64{1, 3}, sink.sent)
}

func TestTickReportsScanError(t *testing.T) {
	scanErr := errors.New("store unreachable")
	src := &fakeSource{err: scanErr}
	s := NewExpiryScanner(src, &fakeSink{}, zap.NewNop(), time.Minute)

	require.ErrorIs(t, s.tick(context.Background()), scanErr)
}

type ctxRecordingSource struct {
	expired []domain.ExpiredTimer
	sawErr  error
}

func (f *ctxRecordingSource) ScanExpired(ctx context.Context, _ time.Time) ([]domain.ExpiredTimer, error) {
	f.sawErr = ctx.Err()
	out := f.expired
	f.expired = nil
	return out, nil
}

func TestExpiryTickFinishesAfterCancellation(t *testing.T) {
	src := &ctxRecordingSource{expired: []domain.ExpiredTimer{expiredFor(1, 1)}}
	sink := &fakeSink{}
	s := NewExpiryScanner(src, sink, zap.NewNop(), time.Minute)

	// Shutdown signal arriving just as the tick starts: the scan still
	// runs to completion on an uncancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.tick(ctx))
	assert.NoError(t, src.sawErr, "store call must not observe the cancellation")
	assert.Equal(t, []int64{1}, sink.sent)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	s := NewExpiryScanner(src, &fakeSink{}, zap.NewNop(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, src.calls, 1)
}
