package store

import (
	"context"
	"fmt"

	"github.com/pedrosland/textdeck/internal/record"
)

// InsertDeliveryEvent appends one delivery callback record for a
// conversation.
func (db *DB) InsertDeliveryEvent(ctx context.Context, owner, counterparty string, e record.DeliveryEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO delivery_events (id, owner_number, counterparty, event_type, status, provider_message_id, message_id, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			occurred_at = excluded.occurred_at`,
		e.ID, owner, counterparty, e.EventType, e.Status,
		e.ProviderMessageID, e.MessageID, e.OccurredAtUnixMs, e.CreatedAtUnixMs)
	return err
}

// ListEvents returns the raw delivery events for a conversation, unordered.
func (db *DB) ListEvents(ctx context.Context, owner, counterparty string) ([]record.DeliveryEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_type, status, provider_message_id, message_id, occurred_at, created_at
		FROM delivery_events
		WHERE owner_number = ? AND counterparty = ?`, owner, counterparty)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []record.DeliveryEvent
	for rows.Next() {
		var e record.DeliveryEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Status, &e.ProviderMessageID,
			&e.MessageID, &e.OccurredAtUnixMs, &e.CreatedAtUnixMs); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
