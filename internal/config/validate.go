package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoJobs = errors.New("config has no enabled jobs")

// Validate checks the whole file and reports every problem it finds.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if _, err := cfg.Location(); err != nil {
		errs = append(errs, err)
	}

	if j := cfg.Journal; j != nil {
		switch strings.ToLower(strings.TrimSpace(j.Driver)) {
		case "", "none", "off", "disabled":
		case "file", "sqlite":
			if strings.TrimSpace(j.Path) == "" {
				errs = append(errs, fmt.Errorf("journal.path: required for driver %q", j.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("journal.driver: unknown driver %q", j.Driver))
		}
		if _, err := ParseDurationField("journal.busy_timeout", j.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	seen := make(map[string]int, len(cfg.Jobs))
	enabled := 0
	for i, jc := range cfg.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		name := strings.TrimSpace(jc.Name)
		if prev, ok := seen[name]; ok && name != "" {
			errs = append(errs, fmt.Errorf("%s.name: %q already used by jobs[%d]", path, name, prev))
		} else {
			seen[name] = i
		}
		if _, err := jc.Parse(path); err != nil {
			errs = append(errs, err)
			continue
		}
		if !jc.Disabled {
			enabled++
		}
	}
	if len(errs) == 0 && enabled == 0 {
		errs = append(errs, ErrNoJobs)
	}
	return errors.Join(errs...)
}

// Validator adapts Validate to Manager.SetValidator.
func Validator(_ context.Context, cfg *Config) error { return Validate(cfg) }
