package delivery

import (
	"testing"

	"github.com/pedrosland/textdeck/internal/record"
)

func event(id, pid, status string, at int64) record.DeliveryEvent {
	return record.DeliveryEvent{
		ID:                id,
		EventType:         "message-status",
		ProviderMessageID: pid,
		Status:            status,
		OccurredAtUnixMs:  at,
	}
}

func TestAnnotateFlagsTransitionsOnly(t *testing.T) {
	got := Annotate([]record.DeliveryEvent{
		event("1", "SM1", "queued", 1000),
		event("2", "SM1", "queued", 2000),
		event("3", "SM1", "delivered", 3000),
	})
	want := []bool{false, false, true}
	for i, w := range want {
		if got[i].StatusChanged != w {
			t.Errorf("event %s: statusChanged = %v, want %v", got[i].ID, got[i].StatusChanged, w)
		}
	}
}

func TestAnnotateFirstObservationNeverFlagged(t *testing.T) {
	got := Annotate([]record.DeliveryEvent{
		event("1", "SM1", "delivered", 1000),
	})
	if got[0].StatusChanged {
		t.Error("first status for a message must not be flagged")
	}
}

func TestAnnotateKeysAreIndependent(t *testing.T) {
	got := Annotate([]record.DeliveryEvent{
		event("1", "SM1", "queued", 1000),
		event("2", "SM2", "delivered", 2000), // different message, first observation
		event("3", "SM1", "delivered", 3000),
	})
	if got[1].StatusChanged {
		t.Error("SM2's first status flagged, keys must not interfere")
	}
	if !got[2].StatusChanged {
		t.Error("SM1 queued -> delivered should be flagged")
	}
}

func TestAnnotateSortsByEffectiveTime(t *testing.T) {
	got := Annotate([]record.DeliveryEvent{
		event("3", "SM1", "delivered", 3000),
		event("1", "SM1", "queued", 1000),
	})
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("order = [%s %s], want [1 3]", got[0].ID, got[1].ID)
	}
	if !got[1].StatusChanged {
		t.Error("transition must be detected after time-ordering, not input order")
	}
}

func TestAnnotateNullStatusIgnored(t *testing.T) {
	got := Annotate([]record.DeliveryEvent{
		event("1", "SM1", "queued", 1000),
		event("2", "SM1", "", 2000), // carries no status
		event("3", "SM1", "queued", 3000),
	})
	if got[1].StatusChanged {
		t.Error("statusless event must not be flagged")
	}
	if got[2].StatusChanged {
		t.Error("statusless event must not reset the tracked value")
	}
}

func TestAnnotateKeyFallbacks(t *testing.T) {
	got := Annotate([]record.DeliveryEvent{
		{ID: "1", MessageID: "42", Status: "queued", OccurredAtUnixMs: 1000},
		{ID: "2", MessageID: "42", Status: "failed", OccurredAtUnixMs: 2000},
		{ID: "3", Status: "queued", OccurredAtUnixMs: 3000}, // only its own id
	})
	if !got[1].StatusChanged {
		t.Error("message id key: queued -> failed should be flagged")
	}
	if got[2].StatusChanged {
		t.Error("event-id key: first observation flagged")
	}
}

func TestAnnotateEmpty(t *testing.T) {
	if got := Annotate(nil); len(got) != 0 {
		t.Errorf("Annotate(nil) = %d events, want 0", len(got))
	}
}
