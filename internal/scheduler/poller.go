package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/repository"
)

// Poller wakes on a fixed interval, loads due timers and dispatches them.
// It is a coarse reaper, not a precise scheduler: actions fire within
// [due, due+interval). A single bad row never stops the loop.
type Poller struct {
	timers   repository.TimerRepository
	fire     FireFunc
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewPoller constructs the polling loop.
func NewPoller(timers repository.TimerRepository, fire FireFunc, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		timers:   timers,
		fire:     fire,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. An immediate first pass reconciles
// rows that came due while the process was down.
func (p *Poller) Run(ctx context.Context) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("timer poller stopping")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce performs a single reap pass.
func (p *Poller) PollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("timer poll panicked", zap.Any("panic", r))
		}
	}()

	p.metrics.RecordPoll()
	now := p.now().UTC()

	due, err := p.timers.ListDue(ctx, now)
	if err != nil {
		p.logger.Error("listing due timers failed", zap.Error(err))
		return
	}

	for _, timer := range due {
		p.dispatch(ctx, timer)
	}
}

// dispatch fires one timer and always deletes its row afterward: a timer
// whose channel no longer exists must still be reaped, or the poller would
// retry it forever.
func (p *Poller) dispatch(ctx context.Context, timer domain.Timer) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("timer dispatch panicked",
				zap.String("channel_id", timer.ChannelID),
				zap.Any("panic", r))
		}
	}()

	err := p.fire(ctx, timer)
	if err != nil {
		p.logger.Error("timer action failed",
			zap.String("channel_id", timer.ChannelID),
			zap.String("user_id", timer.UserID),
			zap.String("action", string(timer.Action)),
			zap.Error(err))
	}
	p.metrics.RecordTimer(string(timer.Action), err != nil)

	if _, err := p.timers.Cancel(ctx, timer.ChannelID, timer.Action); err != nil {
		p.logger.Error("deleting consumed timer failed",
			zap.String("channel_id", timer.ChannelID),
			zap.String("action", string(timer.Action)),
			zap.Error(err))
	}
}
