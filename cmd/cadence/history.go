package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cadence/internal/journal"
	logx "cadence/pkg/logx"
)

func newHistoryCmd(cfgPath *string) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "history [job]",
		Short: "Show recent runs from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			jc, err := journalConfig(cfg)
			if err != nil {
				return err
			}
			st, err := journal.Open(jc, logx.Nop())
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("journal is disabled in config")
			}
			defer st.Close()

			job := ""
			if len(args) == 1 {
				job = args[0]
			}
			entries, err := st.Recent(cmd.Context(), job, count)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tJOB\tTRIGGER\tTOOK\tRESULT")
			for _, e := range entries {
				result := "ok"
				if !e.OK {
					result = "failed: " + e.Error
				}
				took := (time.Duration(e.TookMS) * time.Millisecond).String()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Started.Format(time.RFC3339), e.Job, e.Trigger, took, result)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 20, "entries to show")
	return cmd
}
