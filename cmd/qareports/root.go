package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/qareports/internal/config"
	"github.com/JonMunkholm/qareports/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type cfgKey struct{}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "qareports",
		Short: "Classify CAD QA export part numbers",
		Long: "qareports ingests QA export workbooks, tags every part number with the\n" +
			"naming rules it violates and keeps the results in a local cache mirrored\n" +
			"to an S3-compatible bucket.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loadEnvFile(envFile)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Command output owns stdout; logs go to stderr except for serve.
			slog.SetDefault(logging.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file overlaid on the environment")

	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newStatsCmd(),
		newSampleCmd(),
		newClearCmd(),
	)
	return root
}

// loadEnvFile overlays path on the environment. Values in the file win over
// existing variables.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	err := godotenv.Overload(path)
	switch {
	case err == nil:
		slog.Info("loaded env file (overwriting existing env vars)", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("no env file found, using environment variables", "path", path)
	default:
		slog.Warn("could not read env file", "path", path, "error", err)
	}
}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey{}).(*config.Config)
	if cfg == nil {
		cfg = config.MustLoad()
	}
	return cfg
}
