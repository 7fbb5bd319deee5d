package record

import "slices"

// Direction of a message relative to the owner number.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// MessageState is the lifecycle state of a single message.
type MessageState string

const (
	StateUnread   MessageState = "UNREAD"
	StateRead     MessageState = "READ"
	StateArchived MessageState = "ARCHIVED"
	StateDeleted  MessageState = "DELETED"
)

// TagFavorite marks a bookmarked message.
const TagFavorite = "Favorite"

// RawMessage is one record as it arrives from the record source. The same
// logical message frequently appears as several raw records (optimistic
// local write, provider confirmation, periodic refetch) with slightly
// different timestamps and no common key.
type RawMessage struct {
	ID                string
	ProviderMessageID string
	Direction         Direction
	From              string
	To                string
	Text              string
	OccurredAtUnixMs  int64 // provider timestamp; 0 = absent/unparseable
	CreatedAtUnixMs   int64 // storage timestamp; 0 = absent/unparseable
	ReadAtUnixMs      int64
	State             MessageState
	Tags              []string
}

// EffectiveState resolves a missing state: READ when a read timestamp
// exists, UNREAD otherwise.
func (m RawMessage) EffectiveState() MessageState {
	if m.State != "" {
		return m.State
	}
	if m.ReadAtUnixMs > 0 {
		return StateRead
	}
	return StateUnread
}

// HasTag reports whether the message carries the given label.
func (m RawMessage) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// SummaryState is the lifecycle state of a conversation summary.
type SummaryState string

const (
	ConversationActive   SummaryState = "ACTIVE"
	ConversationArchived SummaryState = "ARCHIVED"
	ConversationDeleted  SummaryState = "DELETED"
)

// ConversationSummary is one row of the conversation list, keyed by
// (owner, counterparty). Its lifecycle is driven entirely by the record
// source; the core only reads and projects it.
type ConversationSummary struct {
	OwnerNumber         string
	Counterparty        string
	LastMessageAtUnixMs int64
	LastMessageText     string
	UnreadCount         int
	State               SummaryState
	Bookmarked          bool
}

// DeliveryEvent is one raw delivery/status callback record.
type DeliveryEvent struct {
	ID                string
	EventType         string
	Status            string // empty = no status carried
	ProviderMessageID string
	MessageID         string // storage id of the related message, if known
	OccurredAtUnixMs  int64
	CreatedAtUnixMs   int64

	// StatusChanged is set by delivery.Annotate; raw events arrive with
	// it false.
	StatusChanged bool
}
