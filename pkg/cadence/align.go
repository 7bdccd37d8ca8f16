package cadence

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// DelayUntil returns the wait from now until the next instant whose position
// inside period equals offset. Periods are phased from the Unix epoch.
//
// The result is in [0, period) for 0 <= offset < period; landing exactly on
// the target yields 0.
func DelayUntil(now time.Time, period Period, offset time.Duration) time.Duration {
	p := int64(period)
	if p <= 0 {
		return 0
	}
	into := now.UnixNano() % p
	if into < 0 {
		into += p
	}
	target := int64(offset)
	if into <= target {
		return time.Duration(target - into)
	}
	return time.Duration(p + target - into)
}

// sleep blocks for d on clk, or until ctx is done.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clk.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
