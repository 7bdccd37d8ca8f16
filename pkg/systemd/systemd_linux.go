//go:build linux

package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Do runs op on unit and waits for systemd to finish the job or ctx to end.
// Each call opens its own system bus connection; scheduled jobs are rare.
func Do(ctx context.Context, op Op, unit string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	unit = UnitName(unit)
	if unit == "" {
		return fmt.Errorf("systemd: unit name is required")
	}

	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	ch := make(chan string, 1)
	switch op {
	case OpStart:
		_, err = conn.StartUnitContext(ctx, unit, "replace", ch)
	case OpStop:
		_, err = conn.StopUnitContext(ctx, unit, "replace", ch)
	case OpRestart:
		_, err = conn.RestartUnitContext(ctx, unit, "replace", ch)
	default:
		return fmt.Errorf("systemd: unknown op %q", op)
	}
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", op, unit, err)
	}

	select {
	case res := <-ch:
		return jobResult(op, unit, res)
	case <-ctx.Done():
		return ctx.Err()
	}
}
