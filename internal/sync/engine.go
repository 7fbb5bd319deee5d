// Package sync drives the refresh pipeline: it pulls raw snapshots from
// the record source, runs them through reconciliation, projection,
// selection, and delivery annotation, and publishes the results on the
// bus. All mutable state is owned by one loop goroutine; public methods
// post commands onto it.
package sync

import (
	"context"
	"time"

	"github.com/pedrosland/textdeck/internal/bus"
	"github.com/pedrosland/textdeck/internal/delivery"
	"github.com/pedrosland/textdeck/internal/receipt"
	"github.com/pedrosland/textdeck/internal/reconcile"
	"github.com/pedrosland/textdeck/internal/record"
	"github.com/pedrosland/textdeck/internal/selection"
	"github.com/pedrosland/textdeck/internal/status"
	"github.com/pedrosland/textdeck/internal/view"
	"go.uber.org/zap"
)

// DefaultInterval is the background refresh period.
const DefaultInterval = 15 * time.Second

type domain int

const (
	domainMessages domain = iota
	domainConversations
	domainEvents
	domainNumbers
	domainCount
)

var domainNames = [domainCount]string{"messages", "conversations", "events", "numbers"}

// SelectionChanged is the bus payload for selection.changed events.
type SelectionChanged struct {
	Owner        string
	Counterparty string
}

type fetchResult struct {
	domain       domain
	owner        string
	counterparty string
	forced       bool

	msgs   []record.RawMessage
	page   record.SummaryPage
	events []record.DeliveryEvent
	owners []string
	err    error
}

// Engine owns the refresh cycle for one console session.
type Engine struct {
	src     record.Source
	bus     *bus.Bus
	machine *status.Machine
	coord   *selection.Coordinator
	batcher *receipt.Batcher
	logger  *zap.Logger

	interval time.Duration

	cmds    chan func(context.Context)
	results chan fetchResult
	cancel  context.CancelFunc
	done    chan struct{}

	// Everything below is touched only on the loop goroutine.
	viewState *view.State
	visible   bool
	inFlight  [domainCount]bool
	pending   [domainCount]bool
	// pendingForced remembers that a queued conversations refresh was a
	// forced restore.
	pendingForced bool

	canonical   []record.RawMessage
	visibleMsgs []record.RawMessage
	summaries   []record.ConversationSummary
	displayed   []record.ConversationSummary
	events      []record.DeliveryEvent
	owners      []string
	lastOwner   string
	lastConv    string
}

// NewEngine wires the pipeline components. A non-positive interval uses
// the default.
func NewEngine(src record.Source, b *bus.Bus, machine *status.Machine, coord *selection.Coordinator, batcher *receipt.Batcher, interval time.Duration, logger *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		src:       src,
		bus:       b,
		machine:   machine,
		coord:     coord,
		batcher:   batcher,
		logger:    logger,
		interval:  interval,
		cmds:      make(chan func(context.Context), 64),
		results:   make(chan fetchResult, domainCount),
		done:      make(chan struct{}),
		viewState: view.NewState(),
		visible:   true,
	}
}

// Start begins the refresh loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	if e.machine != nil {
		_ = e.machine.Transition(status.Active)
	}
	go e.loop(ctx)
}

// Stop halts the loop and flushes any pending read receipts.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	if err := e.batcher.Flush(); err != nil {
		e.logger.Warn("final receipt flush failed", zap.Error(err))
	}
	if e.machine != nil {
		_ = e.machine.Transition(status.Stopped)
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// A flushed receipt changes read state server-side; re-fetch so
	// unread counts match.
	receiptCh, unsub := e.bus.Subscribe("receipt.", 16)
	defer unsub()

	for {
		select {
		case <-ticker.C:
			// Background refresh stays suspended while not visible.
			if !e.visible {
				continue
			}
			e.refreshAll(ctx, false)
		case fn := <-e.cmds:
			fn(ctx)
		case res := <-e.results:
			e.settle(ctx, res)
		case <-receiptCh:
			e.refresh(ctx, domainConversations, false)
			e.refresh(ctx, domainMessages, false)
		case <-ctx.Done():
			return
		}
	}
}

// post schedules a command on the loop goroutine. Returns false once the
// engine has stopped.
func (e *Engine) post(fn func(context.Context)) bool {
	select {
	case e.cmds <- fn:
		return true
	case <-e.done:
		return false
	}
}

// ---- public commands ----

// SwitchOwner changes the owner identity and restores its selection from
// server state.
func (e *Engine) SwitchOwner(owner string) {
	e.post(func(ctx context.Context) {
		if owner == e.coord.Owner() {
			return
		}
		e.coord.SwitchOwner(owner)
		e.clearConversationData()
		e.syncSelection(ctx)
		e.refresh(ctx, domainConversations, true)
	})
}

// ClickConversation selects a conversation from the list by explicit user
// action.
func (e *Engine) ClickConversation(counterparty string) {
	e.post(func(ctx context.Context) {
		e.coord.Click(ctx, counterparty)
		e.syncSelection(ctx)
	})
}

// StartConversation pins a conversation the user just started, before any
// message or summary exists for it.
func (e *Engine) StartConversation(counterparty string) {
	e.post(func(ctx context.Context) {
		e.coord.PinManual(ctx, counterparty)
		e.syncSelection(ctx)
	})
}

// SetFilter switches the message filter and re-projects.
func (e *Engine) SetFilter(f view.Filter) {
	e.post(func(_ context.Context) {
		e.viewState.SetFilter(f)
		e.project()
	})
}

// SetMode switches the conversation view mode and re-projects both lists.
func (e *Engine) SetMode(m view.Mode) {
	e.post(func(_ context.Context) {
		e.viewState.SetMode(m)
		e.projectConversations()
		e.project()
	})
}

// SetVisible marks the consuming context foregrounded or backgrounded.
// Becoming visible bypasses the remaining tick wait.
func (e *Engine) SetVisible(visible bool) {
	e.post(func(ctx context.Context) {
		if visible == e.visible {
			return
		}
		e.visible = visible
		if e.machine != nil {
			if visible {
				_ = e.machine.Transition(status.Active)
			} else {
				_ = e.machine.Transition(status.Suspended)
			}
		}
		if visible {
			e.refreshAll(ctx, false)
		}
	})
}

// MessageVisible reports that a message scrolled into view. Inbound,
// currently-addressed, unread messages feed the read-receipt batcher.
func (e *Engine) MessageVisible(messageID string) {
	e.post(func(_ context.Context) {
		owner, conv := e.coord.Owner(), e.coord.Counterparty()
		for _, m := range e.canonical {
			if m.ID != messageID {
				continue
			}
			readable := m.Direction == record.Inbound &&
				m.To == owner && m.From == conv &&
				m.EffectiveState() == record.StateUnread
			e.batcher.OnVisible(messageID, readable)
			return
		}
	})
}

// ToggleMessageSelect flips a message in or out of the in-progress
// multi-select. Filter switches and conversation changes clear it.
func (e *Engine) ToggleMessageSelect(messageID string) {
	e.post(func(_ context.Context) {
		e.viewState.ToggleSelect(messageID)
	})
}

// SelectedCount returns the multi-select size.
func (e *Engine) SelectedCount() int {
	ch := make(chan int, 1)
	if !e.post(func(_ context.Context) {
		ch <- e.viewState.SelectedCount()
	}) {
		return 0
	}
	select {
	case n := <-ch:
		return n
	case <-e.done:
		return 0
	}
}

// RefreshAll requests an immediate refresh of every data domain.
func (e *Engine) RefreshAll(forced bool) {
	e.post(func(ctx context.Context) {
		e.bus.Publish(bus.Event{Kind: bus.KindRefreshRequested})
		e.refreshAll(ctx, forced)
	})
}

// ---- queries ----
// Queries run as commands on the loop goroutine, so they are race-free
// and always observe a settled state. They block until the loop serves
// them; call only while the engine is started.

// CurrentSelection returns the selected (owner, counterparty) pair.
func (e *Engine) CurrentSelection() (string, string) {
	type pair struct{ owner, conv string }
	ch := make(chan pair, 1)
	if !e.post(func(_ context.Context) {
		ch <- pair{e.coord.Owner(), e.coord.Counterparty()}
	}) {
		return "", ""
	}
	select {
	case p := <-ch:
		return p.owner, p.conv
	case <-e.done:
		return "", ""
	}
}

// VisibleMessages returns the projected message list.
func (e *Engine) VisibleMessages() []record.RawMessage {
	ch := make(chan []record.RawMessage, 1)
	if !e.post(func(_ context.Context) {
		out := make([]record.RawMessage, len(e.visibleMsgs))
		copy(out, e.visibleMsgs)
		ch <- out
	}) {
		return nil
	}
	select {
	case out := <-ch:
		return out
	case <-e.done:
		return nil
	}
}

// Conversations returns the projected conversation list.
func (e *Engine) Conversations() []record.ConversationSummary {
	ch := make(chan []record.ConversationSummary, 1)
	if !e.post(func(_ context.Context) {
		out := make([]record.ConversationSummary, len(e.displayed))
		copy(out, e.displayed)
		ch <- out
	}) {
		return nil
	}
	select {
	case out := <-ch:
		return out
	case <-e.done:
		return nil
	}
}

// Owners returns the known owner numbers.
func (e *Engine) Owners() []string {
	ch := make(chan []string, 1)
	if !e.post(func(_ context.Context) {
		out := make([]string, len(e.owners))
		copy(out, e.owners)
		ch <- out
	}) {
		return nil
	}
	select {
	case out := <-ch:
		return out
	case <-e.done:
		return nil
	}
}

// Events returns the annotated delivery events.
func (e *Engine) Events() []record.DeliveryEvent {
	ch := make(chan []record.DeliveryEvent, 1)
	if !e.post(func(_ context.Context) {
		out := make([]record.DeliveryEvent, len(e.events))
		copy(out, e.events)
		ch <- out
	}) {
		return nil
	}
	select {
	case out := <-ch:
		return out
	case <-e.done:
		return nil
	}
}

// ---- loop internals ----

func (e *Engine) refreshAll(ctx context.Context, forced bool) {
	e.refresh(ctx, domainNumbers, false)
	e.refresh(ctx, domainConversations, forced)
	e.refresh(ctx, domainMessages, false)
	e.refresh(ctx, domainEvents, false)
}

// refresh issues one fetch per domain at a time. A request arriving while
// a fetch is outstanding waits for it to settle instead of stacking
// concurrent calls.
func (e *Engine) refresh(ctx context.Context, d domain, forced bool) {
	if e.inFlight[d] {
		e.pending[d] = true
		if d == domainConversations && forced {
			e.pendingForced = true
		}
		return
	}

	owner, conv := e.coord.Owner(), e.coord.Counterparty()
	if d != domainNumbers && owner == "" {
		return
	}
	if (d == domainMessages || d == domainEvents) && conv == "" {
		return
	}

	e.inFlight[d] = true
	go func() {
		res := fetchResult{domain: d, owner: owner, counterparty: conv, forced: forced}
		switch d {
		case domainMessages:
			res.msgs, res.err = e.src.ListMessages(ctx, owner, conv)
		case domainConversations:
			res.page, res.err = e.src.ListSummaries(ctx, owner)
		case domainEvents:
			res.events, res.err = e.src.ListEvents(ctx, owner, conv)
		case domainNumbers:
			res.owners, res.err = e.src.ListOwners(ctx)
		}
		select {
		case e.results <- res:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) settle(ctx context.Context, res fetchResult) {
	e.inFlight[res.domain] = false

	if res.err != nil {
		// Transient failure: the previous canonical/projected state
		// stays the answer until the next tick.
		e.logger.Warn("refresh failed",
			zap.String("domain", domainNames[res.domain]),
			zap.Error(res.err))
		if e.machine != nil {
			_ = e.machine.Transition(status.Degraded)
		}
		e.bus.Publish(bus.Event{
			Kind:    bus.KindSyncError,
			Payload: domainNames[res.domain] + " refresh failed: " + res.err.Error(),
		})
		e.redoPending(ctx, res.domain)
		return
	}

	// A fetch that raced a selection change completes, but its result is
	// for a context that no longer exists.
	if stale := e.isStale(res); stale {
		e.logger.Debug("discarding stale fetch result",
			zap.String("domain", domainNames[res.domain]),
			zap.String("owner", res.owner),
			zap.String("counterparty", res.counterparty))
		e.redoPending(ctx, res.domain)
		return
	}

	if e.machine != nil && e.visible {
		_ = e.machine.Transition(status.Active)
	}

	switch res.domain {
	case domainConversations:
		e.applySummaries(ctx, res)
	case domainMessages:
		e.canonical = reconcile.Reconcile(res.msgs)
		e.project()
	case domainEvents:
		e.events = delivery.Annotate(res.events)
		e.bus.Publish(bus.Event{Kind: bus.KindEventsUpdated, Payload: e.events})
	case domainNumbers:
		e.owners = res.owners
		e.bus.Publish(bus.Event{Kind: bus.KindNumbersUpdated, Payload: e.owners})
	}

	e.redoPending(ctx, res.domain)
}

func (e *Engine) redoPending(ctx context.Context, d domain) {
	if !e.pending[d] {
		return
	}
	e.pending[d] = false
	forced := false
	if d == domainConversations {
		forced = e.pendingForced
		e.pendingForced = false
	}
	e.refresh(ctx, d, forced)
}

func (e *Engine) isStale(res fetchResult) bool {
	// The owner list is global; it cannot go stale.
	if res.domain == domainNumbers {
		return false
	}
	if res.owner != e.coord.Owner() {
		return true
	}
	if res.domain == domainConversations {
		return false
	}
	return res.counterparty != e.coord.Counterparty()
}

func (e *Engine) applySummaries(ctx context.Context, res fetchResult) {
	e.summaries = res.page.Summaries

	// The active mode may have just emptied out; fall back to recent
	// rather than showing a blank console.
	if mode, demoted := view.Demote(e.viewState.Mode, e.summaries); demoted {
		e.viewState.SetMode(mode)
		e.coord.ClearSelection()
	}
	e.projectConversations()

	e.coord.Apply(ctx, e.displayed, res.page.SuggestedCounterparty, res.forced)
	e.syncSelection(ctx)
}

// syncSelection propagates a selection change: the batcher drops receipts
// for the old conversation and the message/event domains re-fetch.
func (e *Engine) syncSelection(ctx context.Context) {
	owner, conv := e.coord.Owner(), e.coord.Counterparty()
	if owner == e.lastOwner && conv == e.lastConv {
		return
	}
	e.lastOwner, e.lastConv = owner, conv
	e.batcher.SetConversation(owner, conv)
	e.clearConversationData()
	e.bus.Publish(bus.Event{
		Kind:    bus.KindSelectionChanged,
		Payload: SelectionChanged{Owner: owner, Counterparty: conv},
	})
	if conv != "" {
		e.refresh(ctx, domainMessages, false)
		e.refresh(ctx, domainEvents, false)
	}
}

func (e *Engine) clearConversationData() {
	e.canonical = nil
	e.visibleMsgs = nil
	e.events = nil
	e.viewState.ClearMultiSelect()
}

func (e *Engine) project() {
	e.visibleMsgs = view.Project(e.canonical, e.viewState.Filter)
	e.bus.Publish(bus.Event{Kind: bus.KindViewUpdated, Payload: e.visibleMsgs})
}

func (e *Engine) projectConversations() {
	e.displayed = view.ProjectConversations(e.summaries, e.viewState.Mode)
	e.bus.Publish(bus.Event{Kind: bus.KindConversationsUpdated, Payload: e.displayed})
}
