package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/domain"
)

// NotifySink is a minimal interface the scanner needs to deliver a text
// notification. telegram.Router implements it (method: Send).
type NotifySink interface {
	Send(userID int64, text string) error
}

// ExpiredSource is the slice of the store the scanner consumes.
type ExpiredSource interface {
	ScanExpired(ctx context.Context, now time.Time) ([]domain.ExpiredTimer, error)
}

// ExpiryScanner periodically collects expired timers and dispatches one
// notification per timer.
type ExpiryScanner struct {
	repo     ExpiredSource
	sink     NotifySink
	log      *zap.Logger
	interval time.Duration
	backoff  time.Duration
}

// NewExpiryScanner creates a scanner polling at the given interval.
func NewExpiryScanner(repo ExpiredSource, sink NotifySink, log *zap.Logger, interval time.Duration) *ExpiryScanner {
	return &ExpiryScanner{
		repo:     repo,
		sink:     sink,
		log:      log,
		interval: interval,
		backoff:  10 * time.Second,
	}
}

// Run starts the loop until ctx is canceled. A tick in progress is
// finished before returning. Store errors shorten the next sleep to the
// backoff interval; the loop itself never exits on error.
func (s *ExpiryScanner) Run(ctx context.Context) {
	t := time.NewTimer(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry scanner stopping")
			return
		case <-t.C:
			if err := s.tick(ctx); err != nil {
				t.Reset(s.backoff)
			} else {
				t.Reset(s.interval)
			}
		}
	}
}

// tick performs one scan cycle: mark expired timers, then notify.
func (s *ExpiryScanner) tick(ctx context.Context) error {
	// A shutdown signal must not abort the transaction of a tick in
	// progress; the sleep select in Run is the only cancellation point.
	ctx = context.WithoutCancel(ctx)

	expired, err := s.repo.ScanExpired(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("expiry scan failed", zap.Error(err))
		return err
	}

	for _, tm := range expired {
		// The completed/notified transition is already committed;
		// delivery is best-effort and never retried.
		if err := s.sink.Send(tm.UserID, fmt.Sprintf("⏰ Timer #%d is done!", tm.Number)); err != nil {
			s.log.Error("timer notification failed",
				zap.Int64("userID", tm.UserID),
				zap.Int("timerNumber", tm.Number),
				zap.Error(err),
			)
			continue
		}
		s.log.Info("timer notification sent",
			zap.Int64("userID", tm.UserID),
			zap.Int("timerNumber", tm.Number),
		)
	}
	return nil
}
