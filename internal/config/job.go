package config

import (
	"fmt"
	"strings"
	"time"

	"cadence/pkg/cadence"
	"cadence/pkg/systemd"
)

// Job is a JobConfig with every field parsed and checked.
type Job struct {
	Name string
	Mode cadence.Mode

	// Interval is set for the plain repeating modes.
	Interval time.Duration
	// Schedule is set for the aligned modes.
	Schedule   cadence.Schedule
	At         string
	Minute     int
	Weekday    time.Weekday
	DayOfMonth int

	Timeout time.Duration
	Command []string
	Unit    string
	UnitOp  systemd.Op

	KillOnError bool
	RunOnInit   bool
}

// Aligned reports whether the job waits for a calendar instant before its first run.
func (j Job) Aligned() bool {
	switch j.Mode {
	case cadence.ModeHourlyAt, cadence.ModeDailyAt, cadence.ModeWeeklyAt, cadence.ModeMonthlyAt:
		return true
	}
	return false
}

// Parse resolves the job. path prefixes every error (e.g. "jobs[2]").
func (j JobConfig) Parse(path string) (Job, error) {
	out := Job{
		Name:        strings.TrimSpace(j.Name),
		Mode:        cadence.Mode(strings.ToLower(strings.TrimSpace(j.Mode))),
		At:          strings.TrimSpace(j.At),
		Minute:      j.Minute,
		Command:     j.Command,
		Unit:        strings.TrimSpace(j.Unit),
		KillOnError: j.KillOnError,
		RunOnInit:   j.RunOnInit,
	}
	if out.Name == "" {
		return Job{}, fmt.Errorf("%s.name: required", path)
	}
	hasCommand := len(j.Command) > 0 && strings.TrimSpace(j.Command[0]) != ""
	switch {
	case hasCommand && out.Unit != "":
		return Job{}, fmt.Errorf("%s: command and unit are mutually exclusive", path)
	case out.Unit != "":
		op, err := systemd.ParseOp(j.UnitAction)
		if err != nil {
			return Job{}, fmt.Errorf("%s.unit_action: %w", path, err)
		}
		out.Unit = systemd.UnitName(out.Unit)
		out.UnitOp = op
	case !hasCommand:
		return Job{}, fmt.Errorf("%s.command: required", path)
	}

	var err error
	if out.Timeout, err = ParseDurationField(path+".timeout", j.Timeout); err != nil {
		return Job{}, err
	}

	switch out.Mode {
	case cadence.ModeEvery:
		if out.Interval, err = ParseDurationField(path+".interval", j.Interval); err != nil {
			return Job{}, err
		}
		if out.Interval <= 0 {
			return Job{}, fmt.Errorf("%s.interval: required for mode every", path)
		}
	case cadence.ModeHourly:
		out.Interval = cadence.Hour.Duration()
	case cadence.ModeDaily:
		out.Interval = cadence.Day.Duration()
	case cadence.ModeWeekly:
		out.Interval = cadence.Week.Duration()
	case cadence.ModeHourlyAt:
		if out.Schedule, err = cadence.HourlyAtSchedule(j.Minute); err != nil {
			return Job{}, fmt.Errorf("%s.minute: %w", path, err)
		}
	case cadence.ModeDailyAt:
		if out.Schedule, err = cadence.DailyAtSchedule(j.At); err != nil {
			return Job{}, fmt.Errorf("%s.at: %w", path, err)
		}
	case cadence.ModeWeeklyAt:
		if out.Weekday, err = cadence.ParseWeekday(string(j.Day)); err != nil {
			return Job{}, fmt.Errorf("%s.day: %w", path, err)
		}
		if out.Schedule, err = cadence.WeeklyAtSchedule(out.Weekday, j.At); err != nil {
			return Job{}, fmt.Errorf("%s.at: %w", path, err)
		}
	case cadence.ModeMonthlyAt:
		if j.DayOfMonth < 1 || j.DayOfMonth > 31 {
			return Job{}, fmt.Errorf("%s.day_of_month: %w %d, expected 1..31", path, cadence.ErrInvalidDayOfMonth, j.DayOfMonth)
		}
		out.DayOfMonth = j.DayOfMonth
		if out.Schedule, err = cadence.DailyAtSchedule(j.At); err != nil {
			return Job{}, fmt.Errorf("%s.at: %w", path, err)
		}
	case "":
		return Job{}, fmt.Errorf("%s.mode: required", path)
	default:
		return Job{}, fmt.Errorf("%s.mode: unknown mode %q", path, j.Mode)
	}
	return out, nil
}

// Location returns the calendar for day-of-month checks.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// EnabledJobs parses every job that is not disabled, in file order.
func (c *Config) EnabledJobs() ([]Job, error) {
	out := make([]Job, 0, len(c.Jobs))
	for i, jc := range c.Jobs {
		if jc.Disabled {
			continue
		}
		j, err := jc.Parse(fmt.Sprintf("jobs[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}
