package cadence

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	logx "cadence/pkg/logx"
)

// Action is one unit of scheduled work. A non-nil error marks the
// invocation as failed; the error is handed to Policy.OnError.
type Action func(ctx context.Context) error

// Policy is the error policy shared by every scheduling mode.
//
//   - KillOnError: stop the schedule after a failed invocation.
//   - RunOnInit: invoke once right away, outside the periodic cadence.
//   - OnError: called with every failure, independent of KillOnError.
type Policy struct {
	KillOnError bool
	RunOnInit   bool
	OnError     func(error)
}

// Option configures a schedule.
type Option func(*options)

type options struct {
	policy   Policy
	clock    clock.WithTicker
	log      logx.Logger
	loc      *time.Location
	name     string
	observer func(Run)
}

func newOptions(opts []Option) options {
	o := options{
		clock: clock.RealClock{},
		log:   logx.Nop(),
		loc:   time.Local,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithPolicy replaces the whole policy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

func KillOnError() Option {
	return func(o *options) { o.policy.KillOnError = true }
}

func RunOnInit() Option {
	return func(o *options) { o.policy.RunOnInit = true }
}

func OnError(fn func(error)) Option {
	return func(o *options) { o.policy.OnError = fn }
}

// WithClock swaps the time source. Tests pass a fake clock.
func WithClock(c clock.WithTicker) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger enables lifecycle and failure logging. Schedules are silent by default.
func WithLogger(log logx.Logger) Option {
	return func(o *options) {
		if !log.IsZero() {
			o.log = log
		}
	}
}

// WithLocation sets the calendar used for the MonthlyAt day-of-month check.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithName labels logs, stats and observer records.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver receives a record after every completed invocation.
func WithObserver(fn func(Run)) Option {
	return func(o *options) { o.observer = fn }
}
