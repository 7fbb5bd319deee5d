// Package view derives what the console actually shows: the filtered
// message list for the open conversation and the ordered conversation
// list for the active view mode.
package view

import (
	"sort"

	"github.com/pedrosland/textdeck/internal/record"
)

// Filter selects which canonical messages are visible. Exactly one filter
// is active at a time.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterActive     Filter = "active"
	FilterBookmarked Filter = "bookmarked"
	FilterArchived   Filter = "archived"
	FilterDeleted    Filter = "deleted"
)

// Mode selects which conversation summaries are listed.
type Mode string

const (
	ModeRecent     Mode = "recent"
	ModeArchived   Mode = "archived"
	ModeBookmarked Mode = "bookmarked"
)

// Project returns the canonical messages visible under the filter,
// preserving their order.
func Project(msgs []record.RawMessage, f Filter) []record.RawMessage {
	var out []record.RawMessage
	for _, m := range msgs {
		if matches(m, f) {
			out = append(out, m)
		}
	}
	return out
}

func matches(m record.RawMessage, f Filter) bool {
	switch f {
	case FilterActive:
		s := m.EffectiveState()
		return s != record.StateArchived && s != record.StateDeleted
	case FilterBookmarked:
		return m.HasTag(record.TagFavorite)
	case FilterArchived:
		return m.EffectiveState() == record.StateArchived
	case FilterDeleted:
		return m.EffectiveState() == record.StateDeleted
	default: // FilterAll
		return true
	}
}

// ProjectConversations returns the summaries listed under the view mode.
// Recent and bookmarked order bookmarked-first (stable), then by last
// message descending; archived purely by last message descending.
func ProjectConversations(summaries []record.ConversationSummary, m Mode) []record.ConversationSummary {
	var out []record.ConversationSummary
	for _, s := range summaries {
		switch m {
		case ModeArchived:
			if s.State == record.ConversationArchived {
				out = append(out, s)
			}
		case ModeBookmarked:
			if s.Bookmarked && s.State != record.ConversationDeleted {
				out = append(out, s)
			}
		default: // ModeRecent
			if s.State == record.ConversationActive {
				out = append(out, s)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if m != ModeArchived && out[i].Bookmarked != out[j].Bookmarked {
			return out[i].Bookmarked
		}
		return out[i].LastMessageAtUnixMs > out[j].LastMessageAtUnixMs
	})
	return out
}

// ForcedFilter returns the message filter a mode imposes, if any.
// Bookmarked mode only ever shows favorited messages.
func ForcedFilter(m Mode) (Filter, bool) {
	if m == ModeBookmarked {
		return FilterBookmarked, true
	}
	return "", false
}

// Demote reports whether the current mode's list is empty while another
// mode still has entries. The caller falls back to recent and clears the
// conversation selection instead of presenting a silently empty console.
func Demote(m Mode, summaries []record.ConversationSummary) (Mode, bool) {
	if m == ModeRecent {
		return m, false
	}
	if len(ProjectConversations(summaries, m)) > 0 {
		return m, false
	}
	for _, other := range []Mode{ModeRecent, ModeArchived, ModeBookmarked} {
		if other == m {
			continue
		}
		if len(ProjectConversations(summaries, other)) > 0 {
			return ModeRecent, true
		}
	}
	return m, false
}
