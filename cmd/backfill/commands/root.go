package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/app"
	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	batchSize   int
	maxProducts int
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Repair missing embeddings and descriptions across the catalog",
	Long: `backfill walks every live product that has a missing or malformed text vector,
a missing regional visual vector, or a placeholder description, and regenerates
only the broken fields. Healthy products are left untouched, so the command is
safe to re-run.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().IntVarP(&batchSize, "batch-size", "b", 50, "products fetched per page")
	rootCmd.Flags().IntVarP(&maxProducts, "max", "m", 0, "stop after this many products (0 = no limit)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, _ []string) error {
	if batchSize <= 0 {
		return fmt.Errorf("--batch-size must be positive, got %d", batchSize)
	}
	if maxProducts < 0 {
		return fmt.Errorf("--max must not be negative, got %d", maxProducts)
	}

	bootLog, err := logger.NewZapLogger("", logLevel)
	if err != nil {
		return err
	}

	cfg, err := config.Load(bootLog)
	if err != nil {
		return err
	}

	level := cfg.App.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log, err := logger.NewZapLogger(cfg.App.Env, level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := app.NewBackfill(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.Close(closeCtx); err != nil {
			log.Warnf("release resources: %v", err)
		}
	}()

	res, err := b.Run(ctx, batchSize, maxProducts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d healed=%d failed=%d\n", res.Scanned, res.Healed, res.Failed)
	return nil
}
