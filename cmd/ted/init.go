package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/sandevgo/tedbot/internal/config"
	envfile "github.com/sandevgo/tedbot/pkg/env"
	"github.com/sandevgo/tedbot/pkg/log"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .env to the runtime directory",
	Long:  `Creates the runtime directory and seeds it with a .env holding the default configuration, ready to edit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		envFile := filepath.Join(runtimePath, ".env")

		if _, err := os.Stat(envFile); err == nil {
			logger.Info().Str("path", envFile).Msg(".env already exists, leaving it alone")
			return nil
		}

		if err := os.MkdirAll(runtimePath, 0755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		// Parse an empty environment so envDefault values are applied.
		cfg := &config.AppConfig{}
		if err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}); err != nil {
			return fmt.Errorf("failed to build default config: %w", err)
		}

		content, err := envfile.MarshalEnv(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal defaults: %w", err)
		}

		if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
			return fmt.Errorf("failed to write .env: %w", err)
		}

		logger.Info().Str("path", envFile).Msg("wrote starter .env")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
