package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agendaviva/reminders/internal/config"
	"github.com/agendaviva/reminders/internal/reminder"
	"github.com/agendaviva/reminders/pkg/database"
	"github.com/agendaviva/reminders/pkg/observability"
)

// buildProcessor wires a processor against the configured database and
// delivery functions, without the optional side infrastructure. Cron
// installations that shell out instead of calling the HTTP endpoint go
// through here.
func buildProcessor(ctx context.Context) (*reminder.Processor, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	registry := reminder.NewDriverRegistry()
	registry.Register(reminder.NewWhatsAppDriver(cfg.Channels.WhatsAppURL, cfg.Channels.ServiceToken))
	registry.Register(reminder.NewPushDriver(cfg.Channels.PushURL, cfg.Channels.ServiceToken))

	logger := observability.NewLogger("remctl")
	repo := reminder.NewRepository(db)
	processor := reminder.NewProcessor(repo, repo, registry, reminder.ProcessorDeps{}, logger.Logger)

	return processor, func() { db.Close() }, nil
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one due-reminder batch and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		processor, cleanup, err := buildProcessor(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := processor.ProcessDue(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d reminders, %d errors\n", result.Processed, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Println("  -", e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
