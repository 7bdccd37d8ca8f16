package cadence

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInterval   = errors.New("cadence: interval must be > 0")
	ErrNilAction         = errors.New("cadence: action is nil")
	ErrInvalidMinute     = errors.New("cadence: invalid minute")
	ErrInvalidTime       = errors.New("cadence: invalid time")
	ErrInvalidWeekday    = errors.New("cadence: invalid weekday")
	ErrInvalidDayOfMonth = errors.New("cadence: invalid day of month")

	// ErrKilled is reported by Handle.Err when KillOnError ended the schedule.
	ErrKilled = errors.New("cadence: schedule stopped after failed invocation")
)

// PanicError is the failure value reported when an action panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("cadence: action panicked: %v", e.Value) }
