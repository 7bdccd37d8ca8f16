package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"cadence/internal/config"
	"cadence/internal/journal"
	"cadence/pkg/cadence"
	logx "cadence/pkg/logx"
)

const journalWriteTimeout = 2 * time.Second

// Options configures a Runner. Zero values are usable.
type Options struct {
	Log     logx.Logger
	Journal journal.Store

	// Clock overrides the schedule clock (tests).
	Clock clock.WithTicker
	// ActionFor overrides how a job becomes an action (tests).
	ActionFor func(config.Job) cadence.Action
}

// Runner keeps one schedule per enabled job and reconciles them on Apply.
type Runner struct {
	log       logx.Logger
	journal   journal.Store
	clock     clock.WithTicker
	actionFor func(config.Job) cadence.Action

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	cfg  *config.Config
	loc  *time.Location
	jobs map[string]*cadence.Handle

	watchers sync.WaitGroup
}

func New(opts Options) *Runner {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	actionFor := opts.ActionFor
	if actionFor == nil {
		actionFor = DefaultAction
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:       log.With(logx.String("comp", "runner")),
		journal:   opts.Journal,
		clock:     opts.Clock,
		actionFor: actionFor,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      map[string]*cadence.Handle{},
	}
}

// DefaultAction runs the job's command or unit operation.
func DefaultAction(j config.Job) cadence.Action {
	if j.Unit != "" {
		return UnitAction(j.Unit, j.UnitOp, j.Timeout)
	}
	return CommandAction(j.Command, j.Timeout)
}

// Apply brings the running schedules in line with cfg. Unchanged jobs keep
// their phase and counters; changed jobs are stopped and registered again.
// A timezone change restarts every job.
func (r *Runner) Apply(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("runner: nil config")
	}
	jobs, err := cfg.EnabledJobs()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return errors.New("runner: stopped")
	}

	added, removed, changed := config.DiffJobs(r.cfg, cfg)
	if r.cfg != nil && r.loc != nil && r.loc.String() != loc.String() {
		// Every running job picks up the new location.
		changed = changed[:0]
		added = added[:0]
		for _, j := range jobs {
			if _, ok := r.jobs[j.Name]; ok {
				changed = append(changed, j.Name)
			} else {
				added = append(added, j.Name)
			}
		}
	}

	for _, name := range append(append([]string(nil), removed...), changed...) {
		r.stopLocked(ctx, name)
	}

	start := make(map[string]bool, len(added)+len(changed))
	for _, name := range added {
		start[name] = true
	}
	for _, name := range changed {
		start[name] = true
	}

	var errs []error
	for _, j := range jobs {
		if !start[j.Name] {
			continue
		}
		if err := r.startLocked(j, loc); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.Name, err))
		}
	}

	r.cfg = cfg
	r.loc = loc
	r.log.Info("jobs applied",
		logx.Int("total", len(r.jobs)),
		logx.Int("added", len(added)),
		logx.Int("removed", len(removed)),
		logx.Int("changed", len(changed)),
	)
	return errors.Join(errs...)
}

func (r *Runner) startLocked(j config.Job, loc *time.Location) error {
	log := r.log.With(logx.String("job", j.Name))
	opts := []cadence.Option{
		cadence.WithName(j.Name),
		cadence.WithLogger(log),
		cadence.WithLocation(loc),
		cadence.WithObserver(r.record),
		cadence.OnError(func(err error) {
			log.Warn("job failed", logx.Bool("kill_on_error", j.KillOnError), logx.Err(err))
		}),
	}
	if r.clock != nil {
		opts = append(opts, cadence.WithClock(r.clock))
	}
	if j.KillOnError {
		opts = append(opts, cadence.KillOnError())
	}
	if j.RunOnInit {
		opts = append(opts, cadence.RunOnInit())
	}

	h, err := register(r.ctx, j, r.actionFor(j), opts)
	if err != nil {
		return err
	}
	r.jobs[j.Name] = h
	log.Debug("job registered", logx.String("mode", string(j.Mode)))

	r.watchers.Add(1)
	go func() {
		defer r.watchers.Done()
		<-h.Done()
		if errors.Is(h.Err(), cadence.ErrKilled) {
			log.Warn("job stopped after failure")
		}
	}()
	return nil
}

// register maps a job onto the matching scheduling call.
func register(ctx context.Context, j config.Job, action cadence.Action, opts []cadence.Option) (*cadence.Handle, error) {
	switch j.Mode {
	case cadence.ModeEvery:
		return cadence.Every(ctx, j.Interval, action, opts...)
	case cadence.ModeHourly:
		return cadence.Hourly(ctx, action, opts...)
	case cadence.ModeDaily:
		return cadence.Daily(ctx, action, opts...)
	case cadence.ModeWeekly:
		return cadence.Weekly(ctx, action, opts...)
	case cadence.ModeHourlyAt:
		return cadence.HourlyAt(ctx, j.Minute, action, opts...)
	case cadence.ModeDailyAt:
		return cadence.DailyAt(ctx, j.At, action, opts...)
	case cadence.ModeWeeklyAt:
		return cadence.WeeklyAt(ctx, j.Weekday, j.At, action, opts...)
	case cadence.ModeMonthlyAt:
		return cadence.MonthlyAt(ctx, j.DayOfMonth, j.At, action, opts...)
	default:
		return nil, fmt.Errorf("unknown mode %q", j.Mode)
	}
}

func (r *Runner) stopLocked(ctx context.Context, name string) {
	h, ok := r.jobs[name]
	if !ok {
		return
	}
	delete(r.jobs, name)
	h.Stop()
	waitHandle(ctx, h)
	r.log.Debug("job unregistered", logx.String("job", name))
}

// waitHandle waits for in-flight invocations unless ctx ends first.
func waitHandle(ctx context.Context, h *cadence.Handle) {
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (r *Runner) record(run cadence.Run) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := r.journal.AppendRun(ctx, journal.EntryFromRun(run)); err != nil {
		r.log.Debug("journal append failed", logx.String("job", run.Name), logx.Err(err))
	}
}

// Snapshot returns the stats of every registered job, sorted by name.
func (r *Runner) Snapshot() []cadence.Stats {
	r.mu.Lock()
	out := make([]cadence.Stats, 0, len(r.jobs))
	for _, h := range r.jobs {
		out = append(out, h.Stats())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop ends every schedule and waits for running actions until ctx ends.
func (r *Runner) Stop(ctx context.Context) {
	r.cancel()
	r.mu.Lock()
	for name := range r.jobs {
		r.stopLocked(ctx, name)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	r.log.Info("runner stopped")
}
