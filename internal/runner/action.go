package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"cadence/pkg/cadence"
	"cadence/pkg/systemd"
)

// maxOutputInError bounds how much process output is folded into an error.
const maxOutputInError = 512

// waitDelay bounds how long a cancelled command may hold its output pipes.
const waitDelay = 5 * time.Second

// CommandAction runs argv once per invocation. A non-zero exit becomes an
// error carrying the tail of the combined output. timeout <= 0 means the
// command only ends with the schedule.
func CommandAction(argv []string, timeout time.Duration) cadence.Action {
	argv = append([]string(nil), argv...)
	return func(ctx context.Context) error {
		if len(argv) == 0 {
			return errors.New("empty command")
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.WaitDelay = waitDelay
		out, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: timed out after %s: %w", argv[0], timeout, ctx.Err())
		}
		if tail := outputTail(out); tail != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, tail)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
}

// UnitAction applies op to a systemd unit once per invocation.
func UnitAction(unit string, op systemd.Op, timeout time.Duration) cadence.Action {
	return func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return systemd.Do(ctx, op, unit)
	}
}

func outputTail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutputInError {
		s = "..." + s[len(s)-maxOutputInError:]
	}
	return strings.Join(strings.Fields(s), " ")
}
