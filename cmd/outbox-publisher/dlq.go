package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
)

// dlqCommand is the operator mode of the binary: list parked events or put
// one back in the queue, then exit.
type dlqCommand struct {
	list      bool
	eventType string
	limit     int
	requeue   string
}

func (c *dlqCommand) bind(fs *flag.FlagSet) {
	fs.BoolVar(&c.list, "dlq-list", false, "print dead-lettered events as JSON lines and exit")
	fs.StringVar(&c.eventType, "dlq-event-type", "", "restrict -dlq-list to one event type")
	fs.IntVar(&c.limit, "dlq-limit", 50, "max entries for -dlq-list")
	fs.StringVar(&c.requeue, "dlq-requeue", "", "requeue the DLQ entry with this id and exit")
}

func (c *dlqCommand) active() bool {
	return c.list || c.requeue != ""
}

type dlqStore interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	RequeueTx(tx *gorm.DB, dlqID uuid.UUID) (uuid.UUID, error)
}

func (c *dlqCommand) run(ctx context.Context, db dbClient, store dlqStore, out io.Writer) error {
	if c.requeue != "" {
		id, err := uuid.Parse(c.requeue)
		if err != nil {
			return fmt.Errorf("invalid -dlq-requeue id: %w", err)
		}
		var eventID uuid.UUID
		if err := db.WithTx(ctx, func(tx *gorm.DB) error {
			eventID, err = store.RequeueTx(tx, id)
			return err
		}); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "requeued outbox event %s\n", eventID)
		return err
	}

	eventType := enums.OutboxEventType(c.eventType)
	if eventType != "" && !eventType.IsValid() {
		return fmt.Errorf("unknown event type %q", c.eventType)
	}
	rows, err := store.List(ctx, outbox.DLQFilter{EventType: eventType, Limit: c.limit})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, row := range rows {
		line := map[string]any{
			"id":            row.ID,
			"event_id":      row.EventID,
			"event_type":    row.EventType,
			"aggregate_id":  row.AggregateID,
			"error_reason":  row.ErrorReason,
			"error_message": row.ErrorMessage,
			"attempt_count": row.AttemptCount,
			"failed_at":     row.FailedAt,
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
