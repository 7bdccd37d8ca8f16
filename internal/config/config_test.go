package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cadence/pkg/cadence"
	"cadence/pkg/systemd"
)

const sampleYAML = `
logging:
  level: debug
  console: true
timezone: UTC
journal:
  driver: file
  path: ./data/cadence
jobs:
  - name: backup
    mode: daily_at
    at: "05:25"
    timeout: 10m
    command: ["/usr/local/bin/backup", "--full"]
  - name: report
    mode: weekly_at
    day: 1
    at: "08:00"
    command: [report]
  - name: cleanup
    mode: weekly_at
    day: Friday
    at: "23:30"
    command: [cleanup]
  - name: poll
    mode: every
    interval: 90s
    run_on_init: true
    kill_on_error: true
    command: [poll]
  - name: invoice
    mode: monthly_at
    day_of_month: 31
    at: "00:00"
    command: [invoice]
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("cadence.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Journal == nil || cfg.Journal.Driver != "file" {
		t.Fatalf("journal = %+v", cfg.Journal)
	}
	if cfg.Jobs[1].Day != "1" || cfg.Jobs[2].Day != "Friday" {
		t.Fatalf("days = %q, %q", cfg.Jobs[1].Day, cfg.Jobs[2].Day)
	}

	jobs, err := cfg.EnabledJobs()
	if err != nil {
		t.Fatalf("EnabledJobs: %v", err)
	}
	if len(jobs) != 5 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if jobs[0].Timeout != 10*time.Minute || jobs[0].Schedule.Offset != 5*time.Hour+25*time.Minute {
		t.Fatalf("backup = %+v", jobs[0])
	}
	if jobs[1].Weekday != time.Monday || jobs[2].Weekday != time.Friday {
		t.Fatalf("weekdays = %v, %v", jobs[1].Weekday, jobs[2].Weekday)
	}
	if jobs[3].Interval != 90*time.Second || !jobs[3].RunOnInit || !jobs[3].KillOnError || jobs[3].Aligned() {
		t.Fatalf("poll = %+v", jobs[3])
	}
	if jobs[4].DayOfMonth != 31 || !jobs[4].Aligned() {
		t.Fatalf("invoice = %+v", jobs[4])
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
	}{
		{name: "unknown yaml field", file: "c.yaml", data: "jobs: []\ncron: '* * * * *'\n"},
		{name: "unknown job field", file: "c.json", data: `{"jobs":[{"name":"a","mode":"hourly","command":["x"],"retries":3}]}`},
		{name: "trailing json", file: "c.json", data: `{"jobs":[]} {"jobs":[]}`},
		{name: "bad day type", file: "c.json", data: `{"jobs":[{"name":"a","day":true}]}`},
		{name: "bad yaml", file: "c.yml", data: "jobs: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.file, []byte(tt.data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestJobParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		job     JobConfig
		wantErr error
		errPart string
		check   func(t *testing.T, j Job)
	}{
		{
			name: "hourly wrapper",
			job:  JobConfig{Name: "a", Mode: "HOURLY", Command: []string{"x"}},
			check: func(t *testing.T, j Job) {
				if j.Mode != cadence.ModeHourly || j.Interval != time.Hour {
					t.Fatalf("got %+v", j)
				}
			},
		},
		{
			name: "hourly_at minute",
			job:  JobConfig{Name: "a", Mode: "hourly_at", Minute: 30, Command: []string{"x"}},
			check: func(t *testing.T, j Job) {
				if j.Schedule != (cadence.Schedule{Period: cadence.Hour, Offset: 30 * time.Minute}) {
					t.Fatalf("got %+v", j.Schedule)
				}
			},
		},
		{name: "minute out of range", job: JobConfig{Name: "a", Mode: "hourly_at", Minute: 60, Command: []string{"x"}}, wantErr: cadence.ErrInvalidMinute, errPart: "jobs[0].minute"},
		{name: "bad time", job: JobConfig{Name: "a", Mode: "daily_at", At: "25:00", Command: []string{"x"}}, wantErr: cadence.ErrInvalidTime, errPart: "jobs[0].at"},
		{name: "bad weekday", job: JobConfig{Name: "a", Mode: "weekly_at", Day: "funday", At: "10:00", Command: []string{"x"}}, wantErr: cadence.ErrInvalidWeekday},
		{name: "bad day of month", job: JobConfig{Name: "a", Mode: "monthly_at", DayOfMonth: 32, At: "10:00", Command: []string{"x"}}, wantErr: cadence.ErrInvalidDayOfMonth},
		{name: "every needs interval", job: JobConfig{Name: "a", Mode: "every", Command: []string{"x"}}, errPart: "interval: required"},
		{name: "negative timeout", job: JobConfig{Name: "a", Mode: "hourly", Timeout: "-1s", Command: []string{"x"}}, errPart: "timeout"},
		{name: "unknown mode", job: JobConfig{Name: "a", Mode: "cron", Command: []string{"x"}}, errPart: "unknown mode"},
		{name: "missing mode", job: JobConfig{Name: "a", Command: []string{"x"}}, errPart: "mode: required"},
		{name: "missing name", job: JobConfig{Mode: "hourly", Command: []string{"x"}}, errPart: "name: required"},
		{name: "missing command", job: JobConfig{Name: "a", Mode: "hourly"}, errPart: "command: required"},
		{name: "command and unit", job: JobConfig{Name: "a", Mode: "hourly", Command: []string{"x"}, Unit: "nginx"}, errPart: "mutually exclusive"},
		{name: "bad unit action", job: JobConfig{Name: "a", Mode: "hourly", Unit: "nginx", UnitAction: "reload"}, errPart: "unit_action"},
		{
			name: "unit job",
			job:  JobConfig{Name: "a", Mode: "daily_at", At: "04:00", Unit: "nginx", UnitAction: "start"},
			check: func(t *testing.T, j Job) {
				if j.Unit != "nginx.service" || j.UnitOp != systemd.OpStart || len(j.Command) != 0 {
					t.Fatalf("got %+v", j)
				}
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			j, err := tt.job.Parse("jobs[0]")
			if tt.wantErr == nil && tt.errPart == "" {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				tt.check(t, j)
				return
			}
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.errPart != "" && !strings.Contains(err.Error(), tt.errPart) {
				t.Fatalf("err = %q, want it to contain %q", err, tt.errPart)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	job := func(name string) JobConfig {
		return JobConfig{Name: name, Mode: "hourly", Command: []string{"true"}}
	}

	if err := Validate(&Config{}); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("empty config err = %v", err)
	}
	disabled := job("a")
	disabled.Disabled = true
	if err := Validate(&Config{Jobs: []JobConfig{disabled}}); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("all disabled err = %v", err)
	}

	err := Validate(&Config{
		Timezone: "Mars/Olympus",
		Journal:  &JournalConfig{Driver: "redis"},
		Jobs:     []JobConfig{job("a"), job("a"), {Name: "b", Mode: "daily_at", At: "7", Command: []string{"x"}}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, part := range []string{"timezone", "journal.driver", `jobs[1].name: "a" already used`, "jobs[2].at"} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("error %q does not mention %q", err, part)
		}
	}

	err = Validate(&Config{Journal: &JournalConfig{Driver: "sqlite", BusyTimeout: "soon"}, Jobs: []JobConfig{job("a")}})
	if err == nil || !strings.Contains(err.Error(), "journal.path") || !strings.Contains(err.Error(), "journal.busy_timeout") {
		t.Fatalf("journal err = %v", err)
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()
	for _, tz := range []string{"", "local", "Local"} {
		loc, err := (&Config{Timezone: tz}).Location()
		if err != nil || loc != time.Local {
			t.Fatalf("Location(%q) = %v, %v", tz, loc, err)
		}
	}
	loc, err := (&Config{Timezone: "UTC"}).Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("Location(UTC) = %v, %v", loc, err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " "); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("1m30s = %v, %v", d, err)
	}
	if _, err := ParseDurationField("job.timeout", "ten"); err == nil || !strings.HasPrefix(err.Error(), "job.timeout:") {
		t.Fatalf("err = %v", err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration accepted")
	}
}

func TestDiffJobs(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Jobs: []JobConfig{
		{Name: "keep", Mode: "hourly", Command: []string{"a"}},
		{Name: "edit", Mode: "hourly", Command: []string{"a"}},
		{Name: "drop", Mode: "hourly", Command: []string{"a"}},
		{Name: "off", Mode: "hourly", Command: []string{"a"}},
	}}
	newCfg := &Config{Jobs: []JobConfig{
		{Name: "keep", Mode: "hourly", Command: []string{"a"}},
		{Name: "edit", Mode: "hourly", Command: []string{"a", "-v"}},
		{Name: "off", Mode: "hourly", Command: []string{"a"}, Disabled: true},
		{Name: "new", Mode: "daily", Command: []string{"b"}},
	}}

	added, removed, changed := DiffJobs(oldCfg, newCfg)
	if strings.Join(added, ",") != "new" {
		t.Fatalf("added = %v", added)
	}
	if strings.Join(removed, ",") != "drop,off" {
		t.Fatalf("removed = %v", removed)
	}
	if strings.Join(changed, ",") != "edit" {
		t.Fatalf("changed = %v", changed)
	}

	added, removed, changed = DiffJobs(nil, oldCfg)
	if len(added) != 4 || len(removed) != 0 || len(changed) != 0 {
		t.Fatalf("from nil: %v %v %v", added, removed, changed)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Jobs: []JobConfig{{Name: "a", Mode: "hourly", Command: []string{"x"}}}}
	newCfg := &Config{
		Logging:  LoggingConfig{Level: "debug"},
		Timezone: "UTC",
		Journal:  &JournalConfig{Driver: "file", Path: "./j"},
		Jobs:     oldCfg.Jobs,
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "journal,logging,timezone" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("self diff = %v", changed)
	}
}

func TestManagerLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg || len(cfg.Jobs) != 5 {
		t.Fatalf("Get = %p, want %p", m.Get(), cfg)
	}

	if err := os.WriteFile(path, []byte("jobs: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(context.Background()); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("Load invalid err = %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("invalid config must not be committed")
	}
}

func TestManagerPublishKeepsLatest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	a, b := &Config{Timezone: "a"}, &Config{Timezone: "b"}
	m.publish(a)
	m.publish(b)
	if got := <-ch; got != b {
		t.Fatalf("got %q, want latest", got.Timezone)
	}
	m.Unsubscribe(make(chan *Config))
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	m.publish(a)
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	// Invalid content is rejected and never published.
	if err := os.WriteFile(path, []byte("jobs: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * reloadDebounce)

	updated := strings.Replace(sampleYAML, `at: "05:25"`, `at: "06:00"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-ch:
		if cfg.Jobs[0].At != "06:00" {
			t.Fatalf("published at = %q", cfg.Jobs[0].At)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
	if m.Get().Jobs[0].At != "06:00" {
		t.Fatal("reload not committed")
	}
}
