// Package systemd controls systemd units for scheduled "unit" jobs.
//
// Operations go over the system D-Bus (github.com/coreos/go-systemd/v22/dbus)
// and wait for the job result, so a unit that fails to start is reported as
// an error rather than a queued job id.
package systemd

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupported = errors.New("systemd: unsupported OS (linux only)")

// Op is a unit operation.
type Op string

const (
	OpStart   Op = "start"
	OpStop    Op = "stop"
	OpRestart Op = "restart"
)

// ParseOp accepts start, stop or restart (any case). Empty means restart.
func ParseOp(s string) (Op, error) {
	switch Op(strings.ToLower(strings.TrimSpace(s))) {
	case "", OpRestart:
		return OpRestart, nil
	case OpStart:
		return OpStart, nil
	case OpStop:
		return OpStop, nil
	default:
		return "", fmt.Errorf("systemd: unknown unit action %q (want start, stop or restart)", s)
	}
}

// UnitName appends ".service" to bare names. Names that already carry a
// unit suffix (".timer", ".socket", ...) are kept.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

// jobResult maps the systemd job result string to an error.
func jobResult(op Op, unit, result string) error {
	if result == "done" {
		return nil
	}
	return fmt.Errorf("systemd: %s %s: job %s", op, unit, result)
}
