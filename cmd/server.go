/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nyxus-portfolio/apiserver/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the portfolio API server",
	Long: `Starts the portfolio API server. Usage:

	portfolio server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, logger := loadRuntime(cmd.Context())
		if err := cfg.Validate(); err != nil {
			logger.Error().Err(err).Msg("invalid configuration")
			return err
		}

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start server")
			return err
		}
		if err := srv.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("server error")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
