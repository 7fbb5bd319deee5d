package record

import "context"

// SummaryPage is the result of one conversation-summary fetch: the raw
// summaries for an owner plus the server's suggested counterparty to
// select, if it has one.
type SummaryPage struct {
	Summaries             []ConversationSummary
	SuggestedCounterparty string
}

// Source is the boundary to the record store. Each list call returns the
// current snapshot: unordered, possibly duplicated, eventually consistent.
// The reconciliation layer owns making sense of it.
type Source interface {
	// ListOwners returns the owner identities known to the store.
	ListOwners(ctx context.Context) ([]string, error)

	ListMessages(ctx context.Context, owner, counterparty string) ([]RawMessage, error)
	ListSummaries(ctx context.Context, owner string) (SummaryPage, error)
	ListEvents(ctx context.Context, owner, counterparty string) ([]DeliveryEvent, error)

	// MarkRead flips the given messages of (owner, counterparty) to READ.
	MarkRead(ctx context.Context, owner, counterparty string, ids []string) error

	// PersistSelection records the last selected conversation for an owner.
	PersistSelection(ctx context.Context, owner, counterparty string) error
}
