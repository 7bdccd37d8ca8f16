package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./cadence.yaml"

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "cadence",
		Short: "Run commands on fixed intervals or calendar-aligned times",
		Long: `cadence runs the jobs listed in a YAML or JSON config file.

Jobs repeat on a fixed interval (every, hourly, daily, weekly) or at an aligned
moment (hourly_at, daily_at, weekly_at, monthly_at). Aligned times are phased
from the Unix epoch, so "daily_at 05:25" is 05:25 UTC.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to config file (.yaml, .yml or .json)")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newNextCmd(&cfgPath),
		newValidateCmd(&cfgPath),
		newHistoryCmd(&cfgPath),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
