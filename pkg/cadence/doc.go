// Package cadence runs an action repeatedly on a fixed interval or at
// calendar-aligned moments (minute of the hour, time of day, weekday, day of
// the month) with one error policy for every mode.
//
// Basic usage:
//
//	h, err := cadence.DailyAt(ctx, "05:25", backup,
//	    cadence.RunOnInit(),
//	    cadence.OnError(func(err error) { log.Warn("backup failed", logx.Err(err)) }),
//	)
//	if err != nil {
//	    return err // bad "HH:MM"
//	}
//	defer h.Stop()
//
// Alignment is computed on the Unix epoch timeline: "daily at 05:25" means
// 05:25 UTC, and weekly schedules are phased from Thursday 1 Jan 1970.
// MonthlyAt is the exception for the date check only: the day of the month is
// read from the local calendar (see WithLocation).
//
// Failures never surface to the caller that registered the schedule. They
// are visible through OnError and WithObserver; without those a failing
// action fails silently. KillOnError ends the schedule after the first
// failure.
//
// Every tick runs the action in its own goroutine, so a slow action can
// overlap the next tick.
package cadence
