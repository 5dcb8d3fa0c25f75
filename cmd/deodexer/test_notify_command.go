package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deodexer/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
			natsURL := strings.TrimSpace(cfg.Notifications.NATSURL)
			if topic == "" && natsURL == "" {
				fmt.Fprintln(out, "Notification not sent: no ntfy_topic or nats_url configured")
				return nil
			}

			services := []notifications.Service{notifications.NewService(cfg)}
			if natsURL != "" {
				pub, err := notifications.ConnectNATS(natsURL, cfg.Notifications.NATSSubject)
				if err != nil {
					return err
				}
				defer pub.Close()
				services = append(services, pub)
			}
			payload := notifications.Payload{"source": "test-notify"}
			if err := notifications.Multi(services...).Publish(cmd.Context(), notifications.EventTest, payload); err != nil {
				return errors.Join(errors.New("test notification failed"), err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
