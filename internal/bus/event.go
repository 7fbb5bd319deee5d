package bus

import "time"

// Event is one envelope published on the bus. ID is assigned on publish.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the core pipeline. Subscribers filter by
// namespace prefix, e.g. "view." or "sync.".
const (
	KindViewUpdated          = "view.updated"
	KindConversationsUpdated = "view.conversations_updated"
	KindEventsUpdated        = "view.events_updated"
	KindNumbersUpdated       = "view.numbers_updated"
	KindSelectionChanged     = "selection.changed"
	KindReceiptFlushed       = "receipt.flushed"
	KindRefreshRequested     = "sync.refresh_requested"
	KindSyncError            = "sync.error"
	KindEngineStatus         = "engine.status_changed"
)
