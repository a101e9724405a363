/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nyxus-portfolio/apiserver/internal/mq"
	"github.com/nyxus-portfolio/apiserver/internal/notify"
)

// notifyCmd consumes contact events and forwards them to the site owner.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Forward contact form messages by email",
	Long: `Subscribes to the contact channel and mails every message through
SMTP_HOST. Without SMTP_HOST messages are only logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, logger := loadRuntime(cmd.Context())

		mailer, err := notify.NewMailer(cfg.SMTP)
		if err != nil {
			return err
		}

		broker, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is required for notify")
		}
		defer broker.Close()

		logger.Info().Str("mq.channel", cfg.MQ.ContactChannel).Msg("waiting for contact messages")
		err = broker.Subscribe(ctx, cfg.MQ.ContactChannel, notify.Handler(mailer))
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
