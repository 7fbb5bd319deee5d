package view

// State holds the console's current filter, mode, and in-progress
// multi-select. It is owned by the sync engine and mutated only on its
// loop goroutine.
type State struct {
	Filter Filter
	Mode   Mode

	multiSelect map[string]bool
}

// NewState starts on the recent view with the active filter.
func NewState() *State {
	return &State{
		Filter:      FilterActive,
		Mode:        ModeRecent,
		multiSelect: make(map[string]bool),
	}
}

// SetFilter switches the message filter. Switching clears any in-progress
// multi-select.
func (s *State) SetFilter(f Filter) {
	if f == s.Filter {
		return
	}
	s.Filter = f
	s.ClearMultiSelect()
}

// SetMode switches the conversation view mode. Entering bookmarked mode
// forces the bookmarked message filter; leaving it restores active.
func (s *State) SetMode(m Mode) {
	if m == s.Mode {
		return
	}
	prev := s.Mode
	s.Mode = m
	if forced, ok := ForcedFilter(m); ok {
		s.SetFilter(forced)
		return
	}
	if _, was := ForcedFilter(prev); was {
		s.SetFilter(FilterActive)
	}
}

// ToggleSelect flips a message in or out of the multi-select.
func (s *State) ToggleSelect(messageID string) {
	if s.multiSelect[messageID] {
		delete(s.multiSelect, messageID)
		return
	}
	s.multiSelect[messageID] = true
}

// Selected returns whether a message is multi-selected.
func (s *State) Selected(messageID string) bool {
	return s.multiSelect[messageID]
}

// SelectedCount returns the multi-select size.
func (s *State) SelectedCount() int {
	return len(s.multiSelect)
}

// ClearMultiSelect drops the in-progress multi-select.
func (s *State) ClearMultiSelect() {
	s.multiSelect = make(map[string]bool)
}
