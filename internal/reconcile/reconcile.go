// Package reconcile collapses the duplicated raw message feed into one
// canonical, time-ordered sequence. The same logical message can arrive as
// an optimistic local write, again under a provider-assigned id, and again
// from a periodic refetch; none of these share a join key in the common
// case, so dedup runs on provider ids where present and on a
// payload-signature merge window where not.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/pedrosland/textdeck/internal/record"
)

// MergeWindowMs bounds how far apart two identical-payload records can sit
// and still be treated as duplicates of one send.
const MergeWindowMs int64 = 120_000

// EffectiveTime returns the authoritative timestamp of a record: provider
// time when present, storage time otherwise, epoch zero when neither
// parsed. Malformed records sort first instead of being dropped.
func EffectiveTime(m record.RawMessage) int64 {
	if m.OccurredAtUnixMs > 0 {
		return m.OccurredAtUnixMs
	}
	if m.CreatedAtUnixMs > 0 {
		return m.CreatedAtUnixMs
	}
	return 0
}

// Signature groups records that lack a provider id. Two raw records with
// the same signature inside the merge window are one logical message.
func Signature(m record.RawMessage) string {
	return fmt.Sprintf("%s|%s|%s|%s", m.Direction, m.From, m.To, m.Text)
}

// rowKey identifies a surviving representative so a record eligible for
// both dedup branches is only emitted once.
func rowKey(m record.RawMessage) string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	return fmt.Sprintf("pv:%s|%d", m.ProviderMessageID, EffectiveTime(m))
}

type bucket struct {
	rep     record.RawMessage
	repTime int64
}

// Reconcile merges duplicate raw records into the canonical ascending
// sequence. Pure: the same input set always yields the same output. No
// record is ever discarded, only coalesced.
func Reconcile(raw []record.RawMessage) []record.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	msgs := make([]record.RawMessage, len(raw))
	copy(msgs, raw)
	sortCanonical(msgs)

	// Identified records: one survivor per provider id, the one with the
	// greatest effective time. Later arrivals for the same id are
	// refinements of the same row, not new messages.
	identified := make(map[string]record.RawMessage)
	idOrder := make([]string, 0, len(msgs))

	// Unidentified records: bucketed by payload signature; a candidate
	// merges into the most recent bucket when inside the merge window,
	// otherwise it opens a new one.
	buckets := make(map[string][]bucket)
	sigOrder := make([]string, 0, len(msgs))

	for _, m := range msgs {
		if m.ProviderMessageID != "" {
			prev, ok := identified[m.ProviderMessageID]
			if !ok {
				idOrder = append(idOrder, m.ProviderMessageID)
				identified[m.ProviderMessageID] = m
			} else if EffectiveTime(m) >= EffectiveTime(prev) {
				identified[m.ProviderMessageID] = m
			}
			continue
		}

		sig := Signature(m)
		bs, ok := buckets[sig]
		if !ok {
			sigOrder = append(sigOrder, sig)
		}
		t := EffectiveTime(m)
		if n := len(bs); n > 0 && abs(t-bs[n-1].repTime) <= MergeWindowMs {
			if t >= bs[n-1].repTime {
				bs[n-1] = bucket{rep: m, repTime: t}
			}
		} else {
			bs = append(bs, bucket{rep: m, repTime: t})
		}
		buckets[sig] = bs
	}

	seen := make(map[string]bool)
	out := make([]record.RawMessage, 0, len(identified)+len(sigOrder))
	for _, pid := range idOrder {
		m := identified[pid]
		if k := rowKey(m); !seen[k] {
			seen[k] = true
			out = append(out, m)
		}
	}
	for _, sig := range sigOrder {
		for _, b := range buckets[sig] {
			if k := rowKey(b.rep); !seen[k] {
				seen[k] = true
				out = append(out, b.rep)
			}
		}
	}

	sortCanonical(out)
	return out
}

// sortCanonical orders ascending by effective time, breaking ties by row
// identity so output is stable across input permutations.
func sortCanonical(msgs []record.RawMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		ti, tj := EffectiveTime(msgs[i]), EffectiveTime(msgs[j])
		if ti != tj {
			return ti < tj
		}
		if msgs[i].ID != msgs[j].ID {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].ProviderMessageID < msgs[j].ProviderMessageID
	})
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
