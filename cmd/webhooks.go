package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// opportunityEvents are the Current RMS webhook events the mirror follows.
var opportunityEvents = []string{
	"opportunity_create",
	"opportunity_update",
	"opportunity_delete",
}

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Manage webhook subscriptions in Current RMS",
}

var webhooksRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register opportunity webhooks pointing at this watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireClient()
		if err != nil {
			return err
		}
		if cfg.Webhook.TargetURL == "" {
			return eris.New("webhook target URL is required (CRMSW_WEBHOOK_TARGET_URL)")
		}

		for _, event := range opportunityEvents {
			hook, err := client.CreateWebhook(cmd.Context(), currentrms.Webhook{
				Name:      "current-rms-watcher " + event,
				TargetURL: cfg.Webhook.TargetURL,
				Event:     event,
				Active:    true,
			})
			if err != nil {
				return eris.Wrapf(err, "register webhook for %s", event)
			}
			zap.L().Info("registered webhook",
				zap.Int("id", hook.ID),
				zap.String("event", event),
			)
		}
		return nil
	},
}

var webhooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhook subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireClient()
		if err != nil {
			return err
		}

		hooks, err := client.ListWebhooks(cmd.Context())
		if err != nil {
			return err
		}
		for _, h := range hooks {
			state := "inactive"
			if h.Active {
				state = "active"
			}
			fmt.Printf("%d\t%s\t%s\t%s\t%s\n", h.ID, h.Event, h.TargetURL, h.Name, state)
		}
		return nil
	},
}

var webhooksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Errorf("invalid webhook id %q", args[0])
		}

		client, err := requireClient()
		if err != nil {
			return err
		}
		if err := client.DeleteWebhook(cmd.Context(), id); err != nil {
			return err
		}
		zap.L().Info("deleted webhook", zap.Int("id", id))
		return nil
	},
}

func init() {
	webhooksCmd.AddCommand(webhooksRegisterCmd)
	webhooksCmd.AddCommand(webhooksListCmd)
	webhooksCmd.AddCommand(webhooksDeleteCmd)
	rootCmd.AddCommand(webhooksCmd)
}
