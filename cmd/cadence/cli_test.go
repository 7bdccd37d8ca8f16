package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cadence/internal/config"
	"cadence/internal/journal"
	"cadence/pkg/cadence"
	logx "cadence/pkg/logx"
)

const testConfig = `
timezone: UTC
journal:
  driver: file
  path: %JOURNAL%
jobs:
  - name: backup
    mode: daily_at
    at: "05:25"
    command: [backup]
  - name: invoice
    mode: monthly_at
    day_of_month: 31
    at: "00:00"
    command: [invoice]
  - name: poll
    mode: every
    interval: 90s
    command: [poll]
  - name: old
    mode: hourly
    disabled: true
    command: [old]
`

func writeConfig(t *testing.T) (cfgPath, journalPath string) {
	t.Helper()
	dir := t.TempDir()
	journalPath = filepath.Join(dir, "cadence")
	cfgPath = filepath.Join(dir, "cadence.yaml")
	body := strings.ReplaceAll(testConfig, "%JOURNAL%", journalPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, journalPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := execute(t, "validate", "-c", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "ok (3 jobs enabled, 4 total)")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("jobs:\n  - name: x\n    mode: cron\n    command: [x]\n"), 0o600))
	_, err = execute(t, "validate", "-c", bad)
	require.ErrorContains(t, err, "unknown mode")

	_, err = execute(t, "validate", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNextCommand(t *testing.T) {
	cfg, _ := writeConfig(t)

	out, err := execute(t, "next", "backup", "-c", cfg, "-n", "2", "--from", "2024-01-01T08:00:00Z")
	require.NoError(t, err)
	require.Contains(t, out, "2024-01-02T05:25:00Z")
	require.Contains(t, out, "2024-01-03T05:25:00Z")
	require.NotContains(t, out, "invoice")

	out, err = execute(t, "next", "invoice", "-c", cfg, "-n", "2", "--from", "2024-04-29T12:00:00Z")
	require.NoError(t, err)
	require.Contains(t, out, "2024-05-31T00:00:00Z")
	require.Contains(t, out, "2024-07-31T00:00:00Z")

	out, err = execute(t, "next", "-c", cfg, "-n", "1", "--from", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Contains(t, out, "2024-01-01T00:01:30Z")
	require.NotContains(t, out, "old")

	_, err = execute(t, "next", "nope", "-c", cfg)
	require.ErrorContains(t, err, `no enabled job named "nope"`)

	_, err = execute(t, "next", "-c", cfg, "--from", "yesterday")
	require.ErrorContains(t, err, "--from")
}

func TestHistoryCommand(t *testing.T) {
	cfg, journalPath := writeConfig(t)

	st, err := journal.Open(journal.Config{Driver: "file", Path: journalPath}, logx.Nop())
	require.NoError(t, err)
	started := time.Date(2024, 1, 2, 5, 25, 0, 0, time.UTC)
	require.NoError(t, st.AppendRun(context.Background(), journal.Entry{Job: "backup", Trigger: "tick", Started: started, TookMS: 1200, OK: true}))
	require.NoError(t, st.AppendRun(context.Background(), journal.Entry{Job: "backup", Trigger: "tick", Started: started.Add(24 * time.Hour), OK: false, Error: "exit status 2"}))
	require.NoError(t, st.AppendRun(context.Background(), journal.Entry{Job: "poll", Trigger: "init", Started: started, OK: true}))
	require.NoError(t, st.Close())

	out, err := execute(t, "history", "backup", "-c", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "failed: exit status 2")
	require.Contains(t, out, "1.2s")
	require.NotContains(t, out, "poll")
	require.Less(t, strings.Index(out, "2024-01-03"), strings.Index(out, "2024-01-02"), "newest first")
}

func TestPreviewRunsZeroCount(t *testing.T) {
	j := config.Job{Name: "x", Mode: cadence.ModeEvery, Interval: time.Minute}
	require.Nil(t, previewRuns(j, time.Now(), time.UTC, 0))
	require.Len(t, previewRuns(j, time.Now(), time.UTC, 4), 4)
}
