// Package delivery scans the raw delivery-event stream and flags status
// transitions so the console can highlight them.
package delivery

import (
	"sort"

	"github.com/pedrosland/textdeck/internal/record"
)

// EffectiveTime mirrors the message rule: provider time, then storage
// time, then epoch zero.
func EffectiveTime(e record.DeliveryEvent) int64 {
	if e.OccurredAtUnixMs > 0 {
		return e.OccurredAtUnixMs
	}
	if e.CreatedAtUnixMs > 0 {
		return e.CreatedAtUnixMs
	}
	return 0
}

// messageKey resolves which message an event concerns: the provider id
// when present, the related storage id otherwise, the event's own id as a
// last resort so unattributable events still track their own history.
func messageKey(e record.DeliveryEvent) string {
	if e.ProviderMessageID != "" {
		return "p:" + e.ProviderMessageID
	}
	if e.MessageID != "" {
		return "m:" + e.MessageID
	}
	return "e:" + e.ID
}

// Annotate returns the events in ascending effective-time order with
// StatusChanged set on each event whose non-empty status differs from the
// last one seen for its message. The first status observed for a message
// is never flagged; events without a status never change the tracked
// value.
func Annotate(events []record.DeliveryEvent) []record.DeliveryEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]record.DeliveryEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := EffectiveTime(out[i]), EffectiveTime(out[j])
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})

	last := make(map[string]string)
	for i := range out {
		out[i].StatusChanged = false
		if out[i].Status == "" {
			continue
		}
		key := messageKey(out[i])
		prev, seen := last[key]
		if seen && prev != out[i].Status {
			out[i].StatusChanged = true
		}
		last[key] = out[i].Status
	}
	return out
}
