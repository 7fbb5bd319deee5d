package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pedrosland/textdeck/internal/record"
)

// ListOwners returns the distinct owner numbers with at least one
// conversation, sorted.
func (db *DB) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT owner_number FROM conversation_summaries
		WHERE state != 'DELETED' ORDER BY owner_number`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// UpsertSummary inserts or updates a conversation summary row.
func (db *DB) UpsertSummary(ctx context.Context, s record.ConversationSummary) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO conversation_summaries (owner_number, counterparty, last_message_at, last_message_text, unread_count, state, bookmarked, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_number, counterparty) DO UPDATE SET
			last_message_at = excluded.last_message_at,
			last_message_text = excluded.last_message_text,
			unread_count = excluded.unread_count,
			state = excluded.state,
			bookmarked = excluded.bookmarked,
			updated_at = excluded.updated_at`,
		s.OwnerNumber, s.Counterparty, s.LastMessageAtUnixMs, s.LastMessageText,
		s.UnreadCount, string(s.State), s.Bookmarked, now)
	return err
}

// ListSummaries returns the owner's conversation summaries plus the
// persisted selection as the suggested counterparty.
func (db *DB) ListSummaries(ctx context.Context, owner string) (record.SummaryPage, error) {
	var page record.SummaryPage

	rows, err := db.QueryContext(ctx, `
		SELECT owner_number, counterparty, last_message_at, last_message_text, unread_count, state, bookmarked
		FROM conversation_summaries
		WHERE owner_number = ? AND state != 'DELETED'`, owner)
	if err != nil {
		return page, fmt.Errorf("list summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s record.ConversationSummary
		var state string
		if err := rows.Scan(&s.OwnerNumber, &s.Counterparty, &s.LastMessageAtUnixMs,
			&s.LastMessageText, &s.UnreadCount, &state, &s.Bookmarked); err != nil {
			return page, err
		}
		s.State = record.SummaryState(state)
		page.Summaries = append(page.Summaries, s)
	}
	if err := rows.Err(); err != nil {
		return page, err
	}

	err = db.QueryRowContext(ctx,
		`SELECT counterparty FROM selection_state WHERE owner_number = ?`, owner).
		Scan(&page.SuggestedCounterparty)
	if err != nil && err != sql.ErrNoRows {
		return page, fmt.Errorf("load selection: %w", err)
	}
	return page, nil
}

// PersistSelection records the last selected conversation for an owner.
func (db *DB) PersistSelection(ctx context.Context, owner, counterparty string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO selection_state (owner_number, counterparty, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_number) DO UPDATE SET
			counterparty = excluded.counterparty,
			updated_at = excluded.updated_at`,
		owner, counterparty, time.Now().UnixMilli())
	return err
}
