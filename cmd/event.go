package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/office-erp/internal/core/events"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events, invalidate cached grants`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var invalidateGrantsCmd = &cobra.Command{
	Use:   "invalidate-grants",
	Short: "Drop every cached role grant",
	Long:  `Publish a grants-changed event so the shared grant cache is invalidated, e.g. after editing role_permissions by hand`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return invalidateGrants(cmd.Context())
	},
}

var (
	eventData      string
	invalidateRole int64
)

func publishTestEvent(eventType string) {
	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		logger.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.BaseEvent{
		ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": eventData,
			"source":  "cli-command",
		},
	}

	logger.Info("publishing test event", "event_type", eventType, "event_id", testEvent.ID)

	ctx := context.Background()
	if err := eventBus.Publish(ctx, testEvent); err != nil {
		logger.Error("failed to publish event", "error", err)
		return
	}

	eventBus.Wait()
	logger.Info("test event published successfully")
}

func invalidateGrants(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	if deps.Redis == nil {
		deps.Logger.Warn("redis is disabled; each server holds its own grant cache, restart them to drop it")
		return nil
	}

	event := events.NewGrantsChangedEvent(invalidateRole, "cli")
	if err := deps.Bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("invalidate grants: %w", err)
	}
	deps.Logger.Info("grant cache invalidated", "event_id", event.EventID())
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	invalidateGrantsCmd.Flags().Int64Var(&invalidateRole, "role", 0, "role whose grants changed, for the audit trail")

	eventCmd.AddCommand(publishEventCmd)
	eventCmd.AddCommand(invalidateGrantsCmd)

	rootCmd.AddCommand(eventCmd)
}
