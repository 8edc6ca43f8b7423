package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"a11y/internal/app"
	"a11y/pkg/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "a11y",
	Short: "Make images, text and documents accessible",
	Long: `a11y turns images into spoken descriptions, text into sign language gloss
and visual explanations, and documents into simplified, summarised text.
Run "a11y serve" for the web interface.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogger()
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// build loads configuration and wires the service graph. Callers must Close
// the result.
func build(ctx context.Context) (*config.Config, *app.BuildResult, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	built, err := app.BuildService(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, built, nil
}
