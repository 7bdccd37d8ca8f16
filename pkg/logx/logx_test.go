package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &m); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
	return m
}

func TestLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "debug").With(String("comp", "runner"))
	log.Warn("job failed", String("job", "backup"), Err(errors.New("exit status 2")), Err(nil), Stack(" "))

	m := decodeLine(t, buf.Bytes())
	if m["level"] != "warn" || m["message"] != "job failed" || m["comp"] != "runner" || m["job"] != "backup" || m["err"] != "exit status 2" {
		t.Fatalf("line = %v", m)
	}
	if _, ok := m["stack"]; ok {
		t.Fatal("blank stack should be omitted")
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logx_test.go:") {
		t.Fatalf("caller = %q", c)
	}
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	if log.Enabled(LevelDebug) || !log.Enabled(LevelError) {
		t.Fatal("Enabled disagrees with level")
	}

	var zero Logger
	if !zero.IsZero() || Nop().IsZero() {
		t.Fatal("IsZero")
	}
	zero.Error("discarded")
	if Nop().Enabled(LevelError) {
		t.Fatal("Nop should be disabled")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]Level{"": LevelInfo, "TRACE": LevelTrace, " debug ": LevelDebug, "warning": LevelWarn, "error": LevelError, "loud": LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestServiceApply(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "cadence.log")
	var console bytes.Buffer

	s := &Service{stderr: &console}
	s.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log := s.Logger().With(String("comp", "test"))
	log.Info("to file")
	log.Debug("filtered")

	// Raising the level and moving to the console applies to existing loggers.
	s.Apply(Config{Level: "debug", Console: true})
	log.Debug("to console")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 || decodeLine(t, []byte(lines[0]))["message"] != "to file" {
		t.Fatalf("file = %q", b)
	}
	if !strings.Contains(console.String(), "to console") || strings.Contains(console.String(), "to file") {
		t.Fatalf("console = %q", console.String())
	}
}
