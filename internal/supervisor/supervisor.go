// Package supervisor runs the long-lived goroutines of the cadence daemon
// under one context: named, panic-safe, optionally restarted with backoff,
// and stopped together.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	logx "cadence/pkg/logx"
)

const (
	defaultMinBackoff = 250 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
	// A loop that ran this long before failing restarts from the minimum backoff.
	stableRun = 30 * time.Second
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log   logx.Logger
	clock clock.Clock

	wg       sync.WaitGroup
	errOnce  sync.Once
	firstErr atomic.Value // error

	mu    sync.Mutex
	stats map[string]*Stats
}

// Stats is a best-effort view of one named goroutine.
type Stats struct {
	Name     string    `json:"name"`
	Active   int       `json:"active"`
	Restarts int       `json:"restarts"`
	Panics   int       `json:"panics"`
	LastErr  string    `json:"last_err,omitempty"`
	LastStop time.Time `json:"last_stop"`
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option { return func(s *Supervisor) { s.log = log } }

// WithClock overrides the restart backoff clock (tests).
func WithClock(c clock.Clock) Option { return func(s *Supervisor) { s.clock = c } }

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		log:    logx.Nop(),
		clock:  clock.RealClock{},
		stats:  map[string]*Stats{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Err returns the first error any goroutine ended with.
func (s *Supervisor) Err() error {
	if err, ok := s.firstErr.Load().(error); ok {
		return err
	}
	return nil
}

// Go runs fn once. A returned error or panic is recorded; context.Canceled is a clean stop.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.note(name, func(st *Stats) { st.Active++ })
		err := s.call(name, fn)
		s.finish(name, err)
	}()
}

// GoRestart runs fn and runs it again after an error or panic, with jittered
// exponential backoff, until the supervisor stops. A nil return ends the loop.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.note(name, func(st *Stats) { st.Active++ })
		backoff := defaultMinBackoff
		for {
			started := s.clock.Now()
			err := s.call(name, fn)
			if err == nil || s.ctx.Err() != nil {
				s.finish(name, nil)
				return
			}
			if s.clock.Since(started) >= stableRun {
				backoff = defaultMinBackoff
			}
			wait := backoff + jitter(backoff)
			s.note(name, func(st *Stats) {
				st.Restarts++
				st.LastErr = err.Error()
			})
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))

			t := s.clock.NewTimer(wait)
			select {
			case <-s.ctx.Done():
				t.Stop()
				s.finish(name, nil)
				return
			case <-t.C():
			}
			backoff = min(backoff*2, defaultMaxBackoff)
		}
	}()
}

// call runs fn once, turning a panic into an error.
func (s *Supervisor) call(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.note(name, func(st *Stats) { st.Panics++ })
			s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	s.log.Debug("goroutine started", logx.String("name", name))
	err = fn(s.ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (s *Supervisor) finish(name string, err error) {
	now := s.clock.Now()
	s.note(name, func(st *Stats) {
		st.Active--
		st.LastStop = now
		if err != nil {
			st.LastErr = err.Error()
		}
	})
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
		s.errOnce.Do(func() { s.firstErr.Store(err) })
		s.log.Warn("goroutine failed", logx.String("name", name), logx.Err(err))
		return
	}
	s.log.Debug("goroutine stopped", logx.String("name", name))
}

func (s *Supervisor) note(name string, fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[name]
	if st == nil {
		st = &Stats{Name: name}
		s.stats[name] = st
	}
	fn(st)
}

// Snapshot returns per-name stats sorted by name.
func (s *Supervisor) Snapshot() []Stats {
	s.mu.Lock()
	out := make([]Stats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop cancels every goroutine and waits for them until ctx ends.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jitter adds up to 20%.
func jitter(d time.Duration) time.Duration {
	j := int64(d) / 5
	if j <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() % (j + 1))
}
