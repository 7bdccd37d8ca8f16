package cadence

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	logx "cadence/pkg/logx"
)

// Mode names the scheduling mode a Handle was created with.
type Mode string

const (
	ModeEvery     Mode = "every"
	ModeHourly    Mode = "hourly"
	ModeDaily     Mode = "daily"
	ModeWeekly    Mode = "weekly"
	ModeHourlyAt  Mode = "hourly_at"
	ModeDailyAt   Mode = "daily_at"
	ModeWeeklyAt  Mode = "weekly_at"
	ModeMonthlyAt Mode = "monthly_at"
)

// Trigger tells whether an invocation came from the immediate run or a tick.
type Trigger string

const (
	TriggerInit Trigger = "init"
	TriggerTick Trigger = "tick"
)

// Run describes one completed invocation.
type Run struct {
	Name    string
	Trigger Trigger
	Started time.Time
	Took    time.Duration
	Err     error
}

// Stats is a point-in-time view of a schedule.
type Stats struct {
	Name      string        `json:"name"`
	Mode      Mode          `json:"mode"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	Skipped   int64         `json:"skipped"`
	Running   int64         `json:"running"`
	LastRun   time.Time     `json:"last_run"`
	LastError string        `json:"last_error,omitempty"`
	NextRun   time.Time     `json:"next_run"`
	CreatedAt time.Time     `json:"created_at"`
}

const failureLogEvery = 5 * time.Second

// Handle is a live schedule. It exists from registration until Stop, the
// registration context ending, or KillOnError ending it.
type Handle struct {
	name     string
	mode     Mode
	interval time.Duration

	action Action
	filter func(now time.Time) bool
	policy Policy
	clock  clock.WithTicker
	log    logx.Logger
	loc    *time.Location
	onRun  func(Run)

	ctx    context.Context // handed to actions
	cancel context.CancelFunc

	killOnce sync.Once
	killed   chan struct{}

	endOnce sync.Once
	done    chan struct{}
	wg      sync.WaitGroup // in-flight invocations

	// initFailed is written by the immediate run and read by every tick.
	initFailed atomic.Bool

	limiter *rate.Limiter

	mu    sync.Mutex
	err   error
	stats Stats
}

func newHandle(ctx context.Context, mode Mode, interval time.Duration, action Action, o options) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	name := o.name
	if name == "" {
		name = string(mode)
	}
	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		name:     name,
		mode:     mode,
		interval: interval,
		action:   action,
		policy:   o.policy,
		clock:    o.clock,
		log:      o.log.With(logx.String("schedule", name), logx.String("mode", string(mode))),
		loc:      o.loc,
		onRun:    o.observer,
		ctx:      hctx,
		cancel:   cancel,
		killed:   make(chan struct{}),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(rate.Every(failureLogEvery), 1),
	}
	h.stats = Stats{
		Name:      name,
		Mode:      mode,
		Interval:  interval,
		CreatedAt: h.clock.Now(),
	}
	return h
}

func (h *Handle) Name() string { return h.name }

// Stop ends the schedule and cancels the context seen by in-flight actions.
// It does not wait; use Wait for that.
func (h *Handle) Stop() { h.cancel() }

// Done is closed once the schedule will not invoke its action again.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the schedule has ended and every in-flight invocation returned.
func (h *Handle) Wait() {
	<-h.done
	h.wg.Wait()
}

// Err reports why the schedule ended: ErrKilled, the context error, or nil
// while it is still active.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stats returns a copy of the current counters.
func (h *Handle) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handle) kill() {
	h.killOnce.Do(func() {
		h.setErr(ErrKilled)
		close(h.killed)
	})
}

func (h *Handle) isKilled() bool {
	select {
	case <-h.killed:
		return true
	default:
		return false
	}
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
}

// end marks the loop as finished. Call exactly once, from the loop goroutine.
func (h *Handle) end(reason error) {
	h.endOnce.Do(func() {
		if reason != nil {
			h.setErr(reason)
		}
		h.mu.Lock()
		h.stats.NextRun = time.Time{}
		h.mu.Unlock()
		h.log.Debug("schedule ended", logx.Err(h.Err()))
		close(h.done)
		// Release the context once the last in-flight invocation returns.
		go func() {
			h.wg.Wait()
			h.cancel()
		}()
	})
}

func (h *Handle) setNext(t time.Time) {
	h.mu.Lock()
	h.stats.NextRun = t
	h.mu.Unlock()
}

// spawn runs one invocation in its own goroutine. Ticks never wait for each other.
func (h *Handle) spawn(trigger Trigger, onFail func(error)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = h.invoke(trigger, onFail)
	}()
}

// invoke runs the action once and applies the policy. onFail runs before
// OnError so the schedule state is settled by the time observers see it.
func (h *Handle) invoke(trigger Trigger, onFail func(error)) error {
	started := h.clock.Now()
	if h.filter != nil && !h.filter(started) {
		h.mu.Lock()
		h.stats.Skipped++
		h.mu.Unlock()
		return nil
	}

	h.mu.Lock()
	h.stats.Running++
	h.mu.Unlock()

	err := safeCall(h.ctx, h.action)
	took := h.clock.Since(started)

	h.mu.Lock()
	h.stats.Running--
	h.stats.Runs++
	h.stats.LastRun = started
	if err != nil {
		h.stats.Failures++
		h.stats.LastError = err.Error()
	}
	h.mu.Unlock()

	if err != nil {
		if onFail != nil {
			onFail(err)
		}
		if h.policy.OnError != nil {
			h.policy.OnError(err)
		}
		if h.limiter.AllowN(h.clock.Now(), 1) {
			h.log.Debug("invocation failed",
				logx.String("trigger", string(trigger)),
				logx.Duration("took", took),
				logx.Bool("kill_on_error", h.policy.KillOnError),
				logx.Err(err),
			)
		}
	}
	if h.onRun != nil {
		h.onRun(Run{Name: h.name, Trigger: trigger, Started: started, Took: took, Err: err})
	}
	return err
}

func safeCall(ctx context.Context, fn Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
