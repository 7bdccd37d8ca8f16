package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	logx "cadence/pkg/logx"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Timezone is the calendar used for monthly day-of-month checks.
	// Empty means the process local zone. Time-of-day alignment is always UTC.
	Timezone string `json:"timezone,omitempty"`

	// Journal is optional; nil or driver "none" disables run recording.
	Journal *JournalConfig `json:"journal,omitempty"`

	Jobs []JobConfig `json:"jobs"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Logx maps the section to the logging service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

// JournalConfig controls where completed runs are recorded.
//
// Example:
//
//	"journal": { "driver": "sqlite", "path": "./data/cadence.db", "busy_timeout": "2s" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// JobConfig is one scheduled command.
//
// Which fields apply depends on Mode:
//   - every: interval
//   - hourly, daily, weekly: none
//   - hourly_at: minute
//   - daily_at: at
//   - weekly_at: day, at
//   - monthly_at: day_of_month, at
type JobConfig struct {
	Name       string  `json:"name"`
	Mode       string  `json:"mode"`
	At         string  `json:"at,omitempty"`
	Minute     int     `json:"minute,omitempty"`
	Day        Weekday `json:"day,omitempty"`
	DayOfMonth int     `json:"day_of_month,omitempty"`

	// Interval and Timeout are Go duration strings (e.g. "90s", "10m").
	Interval string `json:"interval,omitempty"`
	Timeout  string `json:"timeout,omitempty"`

	// Exactly one of Command or Unit is set. Unit jobs start, stop or
	// restart a systemd unit instead of running a process.
	Command    []string `json:"command,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	UnitAction string   `json:"unit_action,omitempty"` // start|stop|restart (default restart)

	KillOnError bool `json:"kill_on_error,omitempty"`
	RunOnInit   bool `json:"run_on_init,omitempty"`
	Disabled    bool `json:"disabled,omitempty"`
}

// Weekday accepts either a day name ("monday") or an index (1) in the config
// file and keeps it as text; cadence.ParseWeekday resolves it.
type Weekday string

func (w *Weekday) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*w = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = Weekday(strings.TrimSpace(s))
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("day: expected a weekday name or index, got %s", b)
	}
	*w = Weekday(strconv.Itoa(n))
	return nil
}
