package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trendscore",
		Short: "Score trending keyword momentum from interest-over-time series",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(topCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(invalidateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Collect keyword candidates from configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest()
		},
	}
}

func scoreCmd() *cobra.Command {
	var (
		date        string
		maxKeywords int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Run the scoring pipeline over tracked keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(date, maxKeywords)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "snapshot date as YYYY-MM-DD (default: today UTC)")
	cmd.Flags().IntVar(&maxKeywords, "max-keywords", 0, "max keywords to score (default: from config)")
	return cmd
}

func topCmd() *cobra.Command {
	var (
		jsonOutput bool
		date       string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show keywords ranked by momentum score for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(jsonOutput, date, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&date, "date", "", "snapshot date as YYYY-MM-DD (default: today UTC)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max keywords to show")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history <keyword>",
		Short: "Show one keyword's momentum history, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(args[0], jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 30, "max snapshots to show")
	return cmd
}

func invalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <keyword>",
		Short: "Drop the cached trends series for a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvalidate(args[0])
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
