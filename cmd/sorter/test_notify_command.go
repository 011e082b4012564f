package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cardsorter/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(out, "Notifications disabled; set notifications.ntfy_topic to enable them")
				return nil
			}
			timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
			sendCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := notifications.NewService(cfg).Publish(sendCtx, notifications.EventTest, nil); err != nil {
				return err
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
