/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/db"
	"github.com/nyxus-portfolio/apiserver/internal/services"
	"github.com/nyxus-portfolio/apiserver/internal/store"
)

var (
	adminEmail    string
	adminPassword string
)

// adminCmd groups account provisioning commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an active admin account if the email is not taken",
	Long: `Create an active admin account. Existing accounts are left untouched.
The password may also be given through ADMIN_PASSWORD.

	portfolio admin create --email admin@example.com --password secret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if adminEmail == "" || password == "" {
			return errors.New("--email and --password are required")
		}

		ctx, cfg, logger := loadRuntime(cmd.Context())
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		users := services.NewUserService(store.NewUserRepository(dbConn), auth.NewBcryptHasher(cfg.Auth.BcryptCost))
		created, err := users.EnsureAdmin(ctx, adminEmail, password)
		if err != nil {
			logger.Error().Err(err).Str("email", adminEmail).Msg("failed to create admin")
			return err
		}

		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Admin user %s created successfully!\n", adminEmail)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "User with email %s already exists.\n", adminEmail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin login email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
}
