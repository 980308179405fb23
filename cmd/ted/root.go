package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tedbot/internal/config"
	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:     "ted",
	Short:   "Ted — a lifelong companion bot",
	Long:    `Ted is a personal conversational companion with time-aware long-term memory.`,
	Version: core.TedVersion,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
