package journal

import (
	"context"
	"fmt"
	"strings"

	logx "cadence/pkg/logx"
)

// Store is the journal API used by the runner and the CLI.
type Store interface {
	AppendRun(ctx context.Context, e Entry) error
	// Recent returns up to n entries, newest first. An empty job matches all jobs.
	Recent(ctx context.Context, job string, n int) ([]Entry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if the journal is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "off", "disabled":
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("journal", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown journal driver: %s", driver)
	}
}
