package cadence

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	logx "cadence/pkg/logx"
)

// Every invokes action every interval, starting interval after the call.
//
// With RunOnInit the action is also dispatched right away. That run and the
// first tick are independent: the ticker's phase is fixed at registration and
// the two may overlap.
func Every(ctx context.Context, interval time.Duration, action Action, opts ...Option) (*Handle, error) {
	return every(ctx, ModeEvery, interval, action, opts)
}

// Hourly is Every(Hour).
func Hourly(ctx context.Context, action Action, opts ...Option) (*Handle, error) {
	return every(ctx, ModeHourly, Hour.Duration(), action, opts)
}

// Daily is Every(Day).
func Daily(ctx context.Context, action Action, opts ...Option) (*Handle, error) {
	return every(ctx, ModeDaily, Day.Duration(), action, opts)
}

// Weekly is Every(Week).
func Weekly(ctx context.Context, action Action, opts ...Option) (*Handle, error) {
	return every(ctx, ModeWeekly, Week.Duration(), action, opts)
}

func every(ctx context.Context, mode Mode, interval time.Duration, action Action, opts []Option) (*Handle, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if action == nil {
		return nil, ErrNilAction
	}
	h := newHandle(ctx, mode, interval, action, newOptions(opts))

	// Arm before returning so the phase is taken from the registration instant.
	ticker := h.arm()
	go func() {
		if h.policy.RunOnInit {
			h.dispatchInit()
		}
		h.repeat(ticker)
	}()
	return h, nil
}

func (h *Handle) arm() clock.Ticker {
	now := h.clock.Now()
	ticker := h.clock.NewTicker(h.interval)
	h.setNext(now.Add(h.interval))
	h.log.Debug("schedule armed", logx.Duration("interval", h.interval), logx.Bool("run_on_init", h.policy.RunOnInit))
	return ticker
}

// dispatchInit starts the immediate run without waiting for it.
func (h *Handle) dispatchInit() {
	h.spawn(TriggerInit, func(error) {
		h.initFailed.Store(true)
	})
}

// repeat owns the ticker until the schedule ends.
func (h *Handle) repeat(ticker clock.Ticker) {
	defer ticker.Stop()

	var onFail func(error)
	if h.policy.KillOnError {
		onFail = func(error) { h.kill() }
	}

	for {
		select {
		case <-h.ctx.Done():
			h.end(h.ctx.Err())
			return
		case <-h.killed:
			h.end(ErrKilled)
			return
		case now := <-ticker.C():
			if h.isKilled() {
				h.end(ErrKilled)
				return
			}
			if h.policy.KillOnError && h.initFailed.Load() {
				h.kill()
				h.end(ErrKilled)
				return
			}
			h.setNext(now.Add(h.interval))
			h.spawn(TriggerTick, onFail)
		}
	}
}
