package cadence

import (
	"context"
	"fmt"
	"time"

	logx "cadence/pkg/logx"
)

// At runs action on the calendar-aligned schedule s.
//
// With RunOnInit the action runs once first and is awaited; if it fails under
// KillOnError the schedule ends without ever arming a ticker. The call then
// sleeps until the next aligned instant, runs the action, and repeats every
// s.Period from there.
func At(ctx context.Context, s Schedule, action Action, opts ...Option) (*Handle, error) {
	return at(ctx, modeFor(s.Period), s, action, nil, opts)
}

// HourlyAt runs action every hour, minute minutes past the hour.
func HourlyAt(ctx context.Context, minute int, action Action, opts ...Option) (*Handle, error) {
	s, err := HourlyAtSchedule(minute)
	if err != nil {
		return nil, err
	}
	return at(ctx, ModeHourlyAt, s, action, nil, opts)
}

// DailyAt runs action every day at "HH:MM".
func DailyAt(ctx context.Context, clockTime string, action Action, opts ...Option) (*Handle, error) {
	s, err := DailyAtSchedule(clockTime)
	if err != nil {
		return nil, err
	}
	return at(ctx, ModeDailyAt, s, action, nil, opts)
}

// WeeklyAt runs action every week on day at "HH:MM".
// Use ParseWeekday to accept names or indexes from user input.
func WeeklyAt(ctx context.Context, day time.Weekday, clockTime string, action Action, opts ...Option) (*Handle, error) {
	s, err := WeeklyAtSchedule(day, clockTime)
	if err != nil {
		return nil, err
	}
	return at(ctx, ModeWeeklyAt, s, action, nil, opts)
}

// MonthlyAt runs action at "HH:MM" on the given day of the month.
//
// It is a DailyAt schedule that skips days whose date in the configured
// location (WithLocation, default time.Local) differs from dayOfMonth. Skipped
// days are not failures. Months shorter than dayOfMonth are skipped entirely.
func MonthlyAt(ctx context.Context, dayOfMonth int, clockTime string, action Action, opts ...Option) (*Handle, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return nil, fmt.Errorf("%w %d, expected 1..31", ErrInvalidDayOfMonth, dayOfMonth)
	}
	s, err := DailyAtSchedule(clockTime)
	if err != nil {
		return nil, err
	}
	return at(ctx, ModeMonthlyAt, s, action, DayOfMonthFilter(dayOfMonth), opts)
}

// DayOfMonthFilter reports whether now falls on dayOfMonth in loc.
func DayOfMonthFilter(dayOfMonth int) func(now time.Time, loc *time.Location) bool {
	return func(now time.Time, loc *time.Location) bool {
		if loc == nil {
			loc = time.Local
		}
		return now.In(loc).Day() == dayOfMonth
	}
}

func modeFor(p Period) Mode {
	switch p {
	case Hour:
		return ModeHourlyAt
	case Week:
		return ModeWeeklyAt
	default:
		return ModeDailyAt
	}
}

func at(ctx context.Context, mode Mode, s Schedule, action Action, filter func(time.Time, *time.Location) bool, opts []Option) (*Handle, error) {
	if s.Period <= 0 {
		return nil, ErrInvalidInterval
	}
	if action == nil {
		return nil, ErrNilAction
	}
	h := newHandle(ctx, mode, s.Period.Duration(), action, newOptions(opts))
	if filter != nil {
		loc := h.loc
		h.filter = func(now time.Time) bool { return filter(now, loc) }
	}
	go h.align(s)
	return h, nil
}

func (h *Handle) align(s Schedule) {
	if h.policy.RunOnInit {
		err := h.invoke(TriggerInit, nil)
		if err != nil && h.policy.KillOnError {
			h.kill()
			h.end(ErrKilled)
			return
		}
	}

	now := h.clock.Now()
	delay := s.Delay(now)
	h.setNext(now.Add(delay))
	h.log.Debug("schedule aligning", logx.String("schedule_at", s.String()), logx.Duration("delay", delay))

	if err := sleep(h.ctx, h.clock, delay); err != nil {
		h.end(err)
		return
	}

	// From here on it is a plain period repeater whose first run is now.
	ticker := h.arm()
	h.dispatchInit()
	h.repeat(ticker)
}
