package journal

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"cadence/pkg/cadence"
)

var ErrClosed = errors.New("journal closed")

// Config configures the journal.
//
// Driver values:
//   - "file": JSON Lines next to Path
//   - "sqlite": SQLite database at Path
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one completed invocation. Keep it compact and schema-stable.
type Entry struct {
	ID      string    `json:"id"`
	Job     string    `json:"job"`
	Trigger string    `json:"trigger"`
	Started time.Time `json:"started"`
	TookMS  int64     `json:"took_ms"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
}

// EntryFromRun converts a library run record. A fresh random ID is assigned.
func EntryFromRun(r cadence.Run) Entry {
	e := Entry{
		ID:      uuid.NewString(),
		Job:     r.Name,
		Trigger: string(r.Trigger),
		Started: r.Started,
		TookMS:  r.Took.Milliseconds(),
		OK:      r.Err == nil,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

func (e *Entry) fill(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Started.IsZero() {
		e.Started = now
	}
}
