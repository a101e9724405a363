/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nyxus-portfolio/apiserver/config"
	"github.com/nyxus-portfolio/apiserver/internal/logutil"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Portfolio backend API",
	Long: `Backend for the Nyxus portfolio site: projects, contact messages and
admin authentication.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it until an
// interrupt or SIGTERM cancels the context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadRuntime reads the configuration and builds the process logger. The
// returned context carries the logger.
func loadRuntime(ctx context.Context) (context.Context, config.Config, zerolog.Logger) {
	cfg := config.LoadConfig()
	logger := logutil.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return logutil.WithLogger(ctx, logger), cfg, logger
}
