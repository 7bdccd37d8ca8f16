//go:build !linux

package systemd

import "context"

func Do(ctx context.Context, op Op, unit string) error {
	return ErrUnsupported
}
