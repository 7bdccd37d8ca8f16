package cadence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Period is the repeating unit a calendar-aligned schedule is aligned to.
type Period time.Duration

const (
	Hour Period = Period(time.Hour)
	Day  Period = Period(24 * time.Hour)
	Week Period = Period(7 * 24 * time.Hour)
)

func (p Period) Duration() time.Duration { return time.Duration(p) }

func (p Period) String() string {
	switch p {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	default:
		return time.Duration(p).String()
	}
}

// dayNames is indexed by time.Weekday (sunday = 0).
var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Schedule is a period plus the offset into it at which a run is due.
// Offsets are measured on the Unix epoch timeline, so day and week
// boundaries are UTC midnights, not local ones.
type Schedule struct {
	Period Period
	Offset time.Duration
}

var _ cron.Schedule = Schedule{}

// HourlyAtSchedule fires every hour, minute minutes past the hour.
func HourlyAtSchedule(minute int) (Schedule, error) {
	if minute < 0 || minute > 59 {
		return Schedule{}, fmt.Errorf("%w %d, expected 0..59", ErrInvalidMinute, minute)
	}
	return Schedule{Period: Hour, Offset: time.Duration(minute) * time.Minute}, nil
}

// DailyAtSchedule fires every day at the given "HH:MM".
func DailyAtSchedule(at string) (Schedule, error) {
	h, m, err := ParseClock(at)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{Period: Day, Offset: clockOffset(h, m)}, nil
}

// WeeklyAtSchedule fires every week on day at the given "HH:MM".
func WeeklyAtSchedule(day time.Weekday, at string) (Schedule, error) {
	if day < time.Sunday || day > time.Saturday {
		return Schedule{}, fmt.Errorf("%w %d, expected 0..6", ErrInvalidWeekday, int(day))
	}
	h, m, err := ParseClock(at)
	if err != nil {
		return Schedule{}, err
	}
	offset := time.Duration(EpochWeekday(day))*Day.Duration() + clockOffset(h, m)
	return Schedule{Period: Week, Offset: offset}, nil
}

// EpochWeekday returns how many days day lies after the weekday of
// 1 Jan 1970 (a Thursday), which is where every epoch week starts.
func EpochWeekday(day time.Weekday) int {
	return (int(day) + 3) % 7
}

// Delay returns how long to wait from now until the next occurrence.
func (s Schedule) Delay(now time.Time) time.Duration {
	return DelayUntil(now, s.Period, s.Offset)
}

// Next implements cron.Schedule. Unlike Delay it is strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.Period <= 0 {
		return time.Time{}
	}
	d := s.Delay(t)
	if d <= 0 {
		d = s.Period.Duration()
	}
	return t.Add(d)
}

func (s Schedule) String() string {
	return fmt.Sprintf("%s+%s", s.Period, s.Offset)
}

func clockOffset(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

// ParseClock parses "HH:MM" (24h clock).
func ParseClock(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w %q, expected HH:MM", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidTime, s)
	}
	return h, m, nil
}

// ParseWeekday accepts a day name ("monday", case-insensitive) or an
// index "0".."6" where sunday = 0.
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, name := range dayNames {
		if v == name {
			return time.Weekday(i), nil
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("%w %q", ErrInvalidWeekday, s)
	}
	return time.Weekday(n), nil
}
