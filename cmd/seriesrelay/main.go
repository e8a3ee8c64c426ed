// Package main is the entry point for the seriesrelay CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"seriesrelay/internal/config"
	"seriesrelay/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seriesrelay",
		Short:         "Relay series files from Telegram index channels to your own channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	root.AddCommand(versionCmd(), startCmd(), scanCmd(), configCmd())
	return root
}

func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		LogLevel:   level,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("seriesrelay %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect and wait for commands, schedules, or both",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := runParams(cmd)
			params.ScanOnStart, _ = cmd.Flags().GetBool("scan")
			return app.Run(params)
		},
	}
	cmd.Flags().Bool("scan", false, "Run a full index scan immediately on startup")
	return cmd
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [link]",
		Short: "Run one scan and exit; with a link, process that single series",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := runParams(cmd)
			if len(args) == 1 {
				params.ScanLink = args[0]
			} else {
				params.ScanOnce = true
			}
			return app.Run(params)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (%d sessions, index %s)\n",
				len(cfg.Telegram.Sessions), cfg.Channels.Index)
			return nil
		},
	})
	return cmd
}
