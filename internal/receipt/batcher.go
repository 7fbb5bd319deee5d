// Package receipt batches visibility-triggered read events. Marking each
// message read the instant it scrolls into view would issue one write per
// message; instead ids accumulate and flush as a single command after a
// quiet period.
package receipt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pedrosland/textdeck/internal/bus"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a flush.
const DefaultDebounce = 300 * time.Millisecond

// ErrFlushConflict reports that the conversation changed between arming
// the timer and firing it. Pending ids target the stale conversation and
// are discarded, never retried.
var ErrFlushConflict = errors.New("receipt: conversation changed before flush")

// Flusher receives the batched mark-read command.
type Flusher interface {
	MarkRead(ctx context.Context, owner, counterparty string, ids []string) error
}

// Batcher accumulates visible unread message ids for the current
// conversation and flushes them once the debounce timer expires without a
// new arrival. The timer is single-shot and reset, not stacked.
type Batcher struct {
	mu           sync.Mutex
	owner        string
	counterparty string
	pending      map[string]bool
	order        []string
	timer        *time.Timer

	debounce time.Duration
	flusher  Flusher
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewBatcher creates a batcher flushing to f after debounce. A zero
// debounce uses the default.
func NewBatcher(f Flusher, b *bus.Bus, debounce time.Duration, logger *zap.Logger) *Batcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{
		pending:  make(map[string]bool),
		debounce: debounce,
		flusher:  f,
		bus:      b,
		logger:   logger,
	}
}

// SetConversation switches the batcher to a new (owner, counterparty)
// pair. Any pending ids belong to the old conversation and are discarded
// unflushed; read receipts must never cross conversations.
func (r *Batcher) SetConversation(owner, counterparty string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner == r.owner && counterparty == r.counterparty {
		return
	}
	if len(r.pending) > 0 {
		r.logger.Debug("discarding pending read receipts",
			zap.Int("count", len(r.pending)),
			zap.String("owner", r.owner),
			zap.String("counterparty", r.counterparty))
	}
	r.owner = owner
	r.counterparty = counterparty
	r.reset()
}

// OnVisible records that a message became visible. readable is true only
// for inbound, currently-addressed, unread messages; anything else is
// ignored. Each accepted id restarts the debounce timer.
func (r *Batcher) OnVisible(messageID string, readable bool) {
	if !readable || messageID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == "" || r.counterparty == "" {
		return
	}
	if !r.pending[messageID] {
		r.pending[messageID] = true
		r.order = append(r.order, messageID)
	}

	if r.timer != nil {
		r.timer.Stop()
	}
	owner, counterparty := r.owner, r.counterparty
	r.timer = time.AfterFunc(r.debounce, func() {
		if err := r.flush(owner, counterparty); err != nil && !errors.Is(err, ErrFlushConflict) {
			r.logger.Error("read receipt flush failed", zap.Error(err))
		}
	})
}

// Flush forces an immediate flush of whatever is pending, bypassing the
// debounce. Used on shutdown.
func (r *Batcher) Flush() error {
	r.mu.Lock()
	owner, counterparty := r.owner, r.counterparty
	r.mu.Unlock()
	err := r.flush(owner, counterparty)
	if errors.Is(err, ErrFlushConflict) {
		return nil
	}
	return err
}

// flush emits one mark-read command with the full pending list, then
// clears it. The conversation captured at arm time must still be current.
func (r *Batcher) flush(owner, counterparty string) error {
	r.mu.Lock()
	if owner != r.owner || counterparty != r.counterparty {
		r.mu.Unlock()
		return ErrFlushConflict
	}
	if len(r.order) == 0 {
		r.mu.Unlock()
		return nil
	}
	ids := r.order
	r.reset()
	r.mu.Unlock()

	if err := r.flusher.MarkRead(context.Background(), owner, counterparty, ids); err != nil {
		return err
	}

	r.logger.Info("read receipts flushed",
		zap.String("owner", owner),
		zap.String("counterparty", counterparty),
		zap.Int("count", len(ids)))
	if r.bus != nil {
		// Unread counts changed server-side; the sync engine re-fetches
		// summaries on this event.
		r.bus.Publish(bus.Event{
			Kind: bus.KindReceiptFlushed,
			Payload: Flushed{
				Owner:        owner,
				Counterparty: counterparty,
				MessageIDs:   ids,
			},
		})
	}
	return nil
}

// reset drops pending state and stops the timer. Caller holds the lock.
func (r *Batcher) reset() {
	r.pending = make(map[string]bool)
	r.order = nil
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Flushed is the bus payload for a completed flush.
type Flushed struct {
	Owner        string
	Counterparty string
	MessageIDs   []string
}
