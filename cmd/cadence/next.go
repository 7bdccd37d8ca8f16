package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"cadence/internal/config"
	"cadence/pkg/cadence"
)

// maxPreviewSteps bounds the search for monthly jobs whose day never comes.
const maxPreviewSteps = 5 * 366

func newNextCmd(cfgPath *string) *cobra.Command {
	var (
		count int
		from  string
	)
	cmd := &cobra.Command{
		Use:   "next [job...]",
		Short: "Print upcoming run times",
		Long: `Print the next run times of each enabled job.

Interval jobs (every, hourly, daily, weekly) have no fixed phase: their preview
counts from --from as if the job had been registered at that instant.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			start := time.Now()
			if strings.TrimSpace(from) != "" {
				if start, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			jobs, err := cfg.EnabledJobs()
			if err != nil {
				return err
			}
			jobs, err = selectJobs(jobs, args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tMODE\tNEXT")
			for _, j := range jobs {
				for _, t := range previewRuns(j, start, loc, count) {
					fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name, j.Mode, t.In(loc).Format(time.RFC3339))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 3, "runs to print per job")
	cmd.Flags().StringVar(&from, "from", "", "preview from this RFC 3339 time instead of now")
	return cmd
}

func selectJobs(jobs []config.Job, names []string) ([]config.Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}
	byName := make(map[string]config.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	out := make([]config.Job, 0, len(names))
	for _, n := range names {
		j, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("no enabled job named %q", n)
		}
		out = append(out, j)
	}
	return out, nil
}

// previewRuns lists the next n run times of j strictly after from.
func previewRuns(j config.Job, from time.Time, loc *time.Location, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	var (
		sched cron.Schedule
		keep  = func(time.Time) bool { return true }
	)
	if j.Aligned() {
		sched = j.Schedule
		if j.Mode == cadence.ModeMonthlyAt {
			match := cadence.DayOfMonthFilter(j.DayOfMonth)
			keep = func(t time.Time) bool { return match(t, loc) }
		}
	} else {
		sched = cron.Every(j.Interval)
	}

	out := make([]time.Time, 0, n)
	t := from
	for step := 0; len(out) < n && step < maxPreviewSteps*n; step++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
