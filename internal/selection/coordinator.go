// Package selection decides which owner number and which counterparty
// conversation stay selected across refresh cycles. Server hints, prior
// local selection, and explicit user pins all compete; the precedence is
// pinned > sticky-prior > server-suggested > first > keep-on-empty,
// evaluated as an explicit rule table so each rule stays auditable.
package selection

import (
	"context"

	"github.com/pedrosland/textdeck/internal/record"
	"go.uber.org/zap"
)

// Rule names which row of the decision table produced a selection.
type Rule string

const (
	RulePinned      Rule = "pinned"
	RuleSticky      Rule = "sticky-prior"
	RuleSuggested   Rule = "server-suggested"
	RuleFirst       Rule = "first"
	RuleKeepOnEmpty Rule = "keep-on-empty"
	RuleNone        Rule = "none"
)

// Decision is the outcome of one refresh evaluation.
type Decision struct {
	Counterparty string
	Rule         Rule
}

// Pin is a conversation the user explicitly started before any message or
// summary exists for it. It survives refreshes that do not yet list it.
type Pin struct {
	Owner        string
	Counterparty string
}

// Persister receives the "persist selection" side effect.
type Persister interface {
	PersistSelection(ctx context.Context, owner, counterparty string) error
}

// Coordinator owns the selection state. It is mutated only from the sync
// engine's loop goroutine, so it carries no lock.
type Coordinator struct {
	owner        string
	counterparty string
	pinned       *Pin

	// needsRestore marks that the next summary refresh may re-derive the
	// selection from server hints (set on owner switch).
	needsRestore bool

	// lastPersisted dedups the persist side effect: the same pair is
	// never persisted twice in a row.
	lastPersistedOwner        string
	lastPersistedCounterparty string

	persister Persister
	logger    *zap.Logger
}

// NewCoordinator creates a coordinator with no selection.
func NewCoordinator(p Persister, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{persister: p, logger: logger}
}

// Owner returns the selected owner number.
func (c *Coordinator) Owner() string { return c.owner }

// Counterparty returns the selected conversation, "" when unselected.
func (c *Coordinator) Counterparty() string { return c.counterparty }

// Pinned returns the manual pin, nil when none is set.
func (c *Coordinator) Pinned() *Pin { return c.pinned }

// SwitchOwner changes the owner identity. The pin, the persisted-pair
// marker, and any forced-restore memory of the prior owner are cleared;
// the next summary refresh restores from server state.
func (c *Coordinator) SwitchOwner(owner string) {
	if owner == c.owner {
		return
	}
	c.owner = owner
	c.counterparty = ""
	c.pinned = nil
	c.needsRestore = true
	c.lastPersistedOwner = ""
	c.lastPersistedCounterparty = ""
}

// PinManual records a "start new conversation" action. The counterparty
// stays selected even while no summary lists it yet.
func (c *Coordinator) PinManual(ctx context.Context, counterparty string) {
	c.pinned = &Pin{Owner: c.owner, Counterparty: counterparty}
	c.needsRestore = false
	c.commit(ctx, counterparty)
}

// Click selects a conversation from the list by explicit user action. Any
// manual pin is cleared; silent refreshes will not override the choice as
// long as the conversation remains listed.
func (c *Coordinator) Click(ctx context.Context, counterparty string) {
	c.pinned = nil
	// The user already decided; a pending restore must not override it.
	c.needsRestore = false
	c.commit(ctx, counterparty)
}

// ClearSelection drops the conversation selection (used on view
// auto-demotion). The pin, if any, stays.
func (c *Coordinator) ClearSelection() {
	c.counterparty = ""
}

// Apply evaluates the decision table against a fresh summary list for the
// current owner. forced marks a forced-restore refresh; a pending restore
// from an owner switch has the same effect once.
func (c *Coordinator) Apply(ctx context.Context, summaries []record.ConversationSummary, suggested string, forced bool) Decision {
	forced = forced || c.needsRestore
	c.needsRestore = false

	d := c.decide(summaries, suggested, forced)
	if d.Rule != RuleNone {
		c.commit(ctx, d.Counterparty)
	} else {
		c.counterparty = ""
	}
	return d
}

func (c *Coordinator) decide(summaries []record.ConversationSummary, suggested string, forced bool) Decision {
	present := func(cp string) bool {
		for _, s := range summaries {
			if s.Counterparty == cp {
				return true
			}
		}
		return false
	}

	switch {
	case c.pinned != nil && c.pinned.Owner == c.owner &&
		(!forced || c.counterparty == c.pinned.Counterparty):
		// The pin wins whether or not the summary list knows about the
		// conversation yet.
		return Decision{Counterparty: c.pinned.Counterparty, Rule: RulePinned}

	case !forced && c.counterparty != "" && present(c.counterparty):
		return Decision{Counterparty: c.counterparty, Rule: RuleSticky}

	case suggested != "" && present(suggested):
		return Decision{Counterparty: suggested, Rule: RuleSuggested}

	case len(summaries) > 0:
		return Decision{Counterparty: summaries[0].Counterparty, Rule: RuleFirst}

	case c.counterparty != "":
		// Transient empty page: keep the previous selection instead of
		// flickering to nothing.
		return Decision{Counterparty: c.counterparty, Rule: RuleKeepOnEmpty}

	default:
		return Decision{Rule: RuleNone}
	}
}

// commit updates the selection and emits the persist side effect when the
// pair actually changed.
func (c *Coordinator) commit(ctx context.Context, counterparty string) {
	c.counterparty = counterparty
	if c.owner == "" || counterparty == "" {
		return
	}
	if c.owner == c.lastPersistedOwner && counterparty == c.lastPersistedCounterparty {
		return
	}
	c.lastPersistedOwner = c.owner
	c.lastPersistedCounterparty = counterparty
	if c.persister == nil {
		return
	}
	if err := c.persister.PersistSelection(ctx, c.owner, counterparty); err != nil {
		c.logger.Warn("persist selection failed",
			zap.String("owner", c.owner),
			zap.String("counterparty", counterparty),
			zap.Error(err))
	}
}
