package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mickamy/fabricator"
	"github.com/mickamy/fabricator/sqladapter"
)

var rootCmd = &cobra.Command{
	Use:   "demo",
	Short: "Apply a YAML fixture inside a fabricator session",
	Long: "Apply a YAML fixture inside a fabricator session. Every change is " +
		"undone when the command exits, unless --keep is given.",
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().String("config", "", "connection config file (FABRICATOR_* env vars override it)")
	rootCmd.Flags().String("env-file", "", "optional .env file loaded before the config")
	rootCmd.Flags().String("fixture", "", "YAML fixture to apply (required)")
	rootCmd.Flags().Bool("keep", false, "do not track the fixture, keeping its rows")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = rootCmd.MarkFlagRequired("fixture")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	fixturePath, _ := cmd.Flags().GetString("fixture")
	keep, _ := cmd.Flags().GetBool("keep")
	levelName, _ := cmd.Flags().GetString("log-level")
	envFile, _ := cmd.Flags().GetString("env-file")

	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	fx, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}
	cfg, err := sqladapter.LoadConfig(configPath)
	if err != nil {
		return err
	}
	adapter, err := sqladapter.Open(cfg, sqladapter.WithLogger(logger))
	if err != nil {
		return err
	}
	f, err := fabricator.New(adapter, fabricator.Config{Logger: &logger})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if keep {
		ctx = fabricator.WithoutTracking(ctx)
	}

	f.StartSession()
	applyErr := fx.apply(ctx, f, cmd.OutOrStdout())
	if applyErr != nil {
		logger.Error().Err(applyErr).Msg("fixture failed, restoring")
	}
	if err := f.CloseConnection(context.Background()); err != nil {
		return fmt.Errorf("failed to restore: %w", err)
	}
	if applyErr == nil && !keep {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "restored")
	}
	return applyErr
}
