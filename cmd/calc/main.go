package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	addr          string
	configFile    string
	logLevel      string
	pollInterval  time.Duration
	invocationLog string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "calc",
		Short: "Asynchronous Calculator client",
		Long:  "Start Calculator calls without blocking and print their results when they complete",
	}

	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:9090", "Calculator service address")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 250*time.Millisecond, "Pause between completion checks")
	rootCmd.PersistentFlags().StringVar(&invocationLog, "invocation-log", "", "Append completed invocations as JSON lines to this file")

	rootCmd.AddCommand(
		addCmd(),
		addAsyncCmd(),
		delegateCmd(),
		overlapCmd(),
		demoCmd(),
		watchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
