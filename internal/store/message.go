package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pedrosland/textdeck/internal/record"
)

// InsertRawMessage appends one raw record. The table deliberately keeps
// duplicate descriptions of the same logical message; collapsing them is
// the reconciler's job, not the store's.
func (db *DB) InsertRawMessage(ctx context.Context, m record.RawMessage) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO raw_messages (id, provider_message_id, direction, from_number, to_number, body, occurred_at, created_at, read_at, state, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider_message_id = excluded.provider_message_id,
			body = excluded.body,
			occurred_at = excluded.occurred_at,
			read_at = excluded.read_at,
			state = excluded.state,
			tags = excluded.tags`,
		m.ID, m.ProviderMessageID, string(m.Direction), m.From, m.To, m.Text,
		m.OccurredAtUnixMs, m.CreatedAtUnixMs, m.ReadAtUnixMs, string(m.State), joinTags(m.Tags))
	return err
}

// ListMessages returns every raw record exchanged between owner and
// counterparty, in either direction, unordered.
func (db *DB) ListMessages(ctx context.Context, owner, counterparty string) ([]record.RawMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, provider_message_id, direction, from_number, to_number, body, occurred_at, created_at, read_at, state, tags
		FROM raw_messages
		WHERE (from_number = ? AND to_number = ?) OR (from_number = ? AND to_number = ?)`,
		owner, counterparty, counterparty, owner)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []record.RawMessage
	for rows.Next() {
		var m record.RawMessage
		var direction, state, tags string
		if err := rows.Scan(&m.ID, &m.ProviderMessageID, &direction, &m.From, &m.To, &m.Text,
			&m.OccurredAtUnixMs, &m.CreatedAtUnixMs, &m.ReadAtUnixMs, &state, &tags); err != nil {
			return nil, err
		}
		m.Direction = record.Direction(direction)
		m.State = record.MessageState(state)
		m.Tags = splitTags(tags)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkRead flips the given inbound messages of (owner, counterparty) to
// READ and recounts the summary's unread messages.
func (db *DB) MarkRead(ctx context.Context, owner, counterparty string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+3)
	args = append(args, string(record.StateRead), now)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, owner, counterparty)

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE raw_messages SET state = ?, read_at = ?
		WHERE id IN (%s) AND direction = 'inbound' AND to_number = ? AND from_number = ?`,
		placeholders), args...); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_summaries SET unread_count = (
			SELECT COUNT(*) FROM raw_messages
			WHERE direction = 'inbound' AND to_number = ? AND from_number = ?
			AND read_at = 0 AND state IN ('', 'UNREAD')
		), updated_at = ?
		WHERE owner_number = ? AND counterparty = ?`,
		owner, counterparty, now, owner, counterparty); err != nil {
		return fmt.Errorf("recount unread: %w", err)
	}

	return tx.Commit()
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
