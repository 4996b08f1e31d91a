// Package scheduler implements delayed ticket actions behind a single
// abstraction with two backings: a persisted timer table polled on a coarse
// interval, and in-process timers that fire at the exact time but do not
// survive a restart. Call sites never know which path served them.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/repository"
)

// FireFunc executes a due timer action.
type FireFunc func(ctx context.Context, timer domain.Timer) error

// Scheduler schedules and cancels future ticket actions.
type Scheduler interface {
	// Schedule arranges for the timer's action to run at ExecuteAt,
	// superseding any pending timer for the same (channel, action).
	Schedule(ctx context.Context, timer domain.Timer) error
	// Cancel removes a pending timer. It reports false when nothing was
	// pending; cancelling twice is safe.
	Cancel(ctx context.Context, channelID string, action domain.TimerAction) (bool, error)
	// CancelAll removes every pending timer for the channel.
	CancelAll(ctx context.Context, channelID string) error
}

// Persistent stores timers in the timer table; the poller reaps them.
type Persistent struct {
	timers repository.TimerRepository
}

// NewPersistent creates the table-backed scheduler.
func NewPersistent(timers repository.TimerRepository) *Persistent {
	return &Persistent{timers: timers}
}

// Schedule cancels any pending (channel, action) row and inserts the
// replacement. The store itself enforces no uniqueness.
func (p *Persistent) Schedule(ctx context.Context, timer domain.Timer) error {
	if _, err := p.timers.Cancel(ctx, timer.ChannelID, timer.Action); err != nil {
		return err
	}
	return p.timers.Add(ctx, timer)
}

// Cancel removes pending rows for (channel, action).
func (p *Persistent) Cancel(ctx context.Context, channelID string, action domain.TimerAction) (bool, error) {
	removed, err := p.timers.Cancel(ctx, channelID, action)
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// CancelAll removes every pending row for the channel.
func (p *Persistent) CancelAll(ctx context.Context, channelID string) error {
	_, err := p.timers.CancelAll(ctx, channelID)
	return err
}

type timerKey struct {
	channelID string
	action    domain.TimerAction
}

// Volatile runs timers in-process with exact wake times. Anything pending
// here is lost on restart.
type Volatile struct {
	mu      sync.Mutex
	pending map[timerKey]*time.Timer
	fire    FireFunc
	logger  *zap.Logger
	now     func() time.Time
}

// NewVolatile creates the in-process scheduler.
func NewVolatile(fire FireFunc, logger *zap.Logger) *Volatile {
	return &Volatile{
		pending: make(map[timerKey]*time.Timer),
		fire:    fire,
		logger:  logger,
		now:     time.Now,
	}
}

// Schedule arms an in-process timer, replacing any pending one for the key.
func (v *Volatile) Schedule(ctx context.Context, timer domain.Timer) error {
	key := timerKey{channelID: timer.ChannelID, action: timer.Action}
	delay := timer.ExecuteAt.Sub(v.now())
	if delay < 0 {
		delay = 0
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if prev, ok := v.pending[key]; ok {
		prev.Stop()
	}
	v.pending[key] = time.AfterFunc(delay, func() {
		v.mu.Lock()
		delete(v.pending, key)
		v.mu.Unlock()
		if err := v.fire(context.Background(), timer); err != nil {
			v.logger.Error("in-process timer action failed",
				zap.String("channel_id", timer.ChannelID),
				zap.String("action", string(timer.Action)),
				zap.Error(err))
		}
	})
	return nil
}

// Cancel disarms the pending timer for (channel, action).
func (v *Volatile) Cancel(_ context.Context, channelID string, action domain.TimerAction) (bool, error) {
	key := timerKey{channelID: channelID, action: action}
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.pending[key]
	if !ok {
		return false, nil
	}
	t.Stop()
	delete(v.pending, key)
	return true, nil
}

// CancelAll disarms every pending timer for the channel.
func (v *Volatile) CancelAll(_ context.Context, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, t := range v.pending {
		if key.channelID == channelID {
			t.Stop()
			delete(v.pending, key)
		}
	}
	return nil
}

// PendingCount reports how many in-process timers are armed.
func (v *Volatile) PendingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// Composite prefers the persistent path and degrades to the volatile one
// when the store write fails. A request is never scheduled on both paths.
type Composite struct {
	persistent *Persistent
	volatile   *Volatile
	logger     *zap.Logger
}

var _ Scheduler = (*Composite)(nil)

// NewComposite wires the durable-first scheduler.
func NewComposite(persistent *Persistent, volatile *Volatile, logger *zap.Logger) *Composite {
	return &Composite{persistent: persistent, volatile: volatile, logger: logger}
}

// Schedule writes to the timer table, falling back in-process on error.
func (c *Composite) Schedule(ctx context.Context, timer domain.Timer) error {
	// A replacement supersedes both paths so the same request can never
	// fire twice.
	_, _ = c.volatile.Cancel(ctx, timer.ChannelID, timer.Action)

	if err := c.persistent.Schedule(ctx, timer); err != nil {
		c.logger.Warn("persisting timer failed; scheduling in-process (will not survive restart)",
			zap.String("channel_id", timer.ChannelID),
			zap.String("action", string(timer.Action)),
			zap.Error(err))
		return c.volatile.Schedule(ctx, timer)
	}
	return nil
}

// Cancel clears the timer from whichever path holds it.
func (c *Composite) Cancel(ctx context.Context, channelID string, action domain.TimerAction) (bool, error) {
	inStore, err := c.persistent.Cancel(ctx, channelID, action)
	inProcess, _ := c.volatile.Cancel(ctx, channelID, action)
	if err != nil {
		return inProcess, err
	}
	return inStore || inProcess, nil
}

// CancelAll clears all of the channel's timers from both paths.
func (c *Composite) CancelAll(ctx context.Context, channelID string) error {
	err := c.persistent.CancelAll(ctx, channelID)
	_ = c.volatile.CancelAll(ctx, channelID)
	return err
}
