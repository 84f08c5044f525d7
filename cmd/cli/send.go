package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agendaviva/reminders/internal/reminder"
)

var (
	sendEventID string
	sendOrgID   string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an instant reminder for an event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		processor, cleanup, err := buildProcessor(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := processor.SendInstant(ctx, reminder.InstantRequest{
			EventID:        sendEventID,
			OrganizationID: sendOrgID,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Recipients: %d, sent: %d, failed: %d\n", result.Recipients, result.Sent, result.Failed)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendEventID, "event", "", "event id (required)")
	sendCmd.Flags().StringVar(&sendOrgID, "org", "", "organization id (required)")
	sendCmd.MarkFlagRequired("event")
	sendCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(sendCmd)
}
