package reconcile

import (
	"testing"

	"github.com/pedrosland/textdeck/internal/record"
)

func raw(id, pid string, text string, occurredAt int64) record.RawMessage {
	return record.RawMessage{
		ID:                id,
		ProviderMessageID: pid,
		Direction:         record.Outbound,
		From:              "+15550001111",
		To:                "+15552223333",
		Text:              text,
		OccurredAtUnixMs:  occurredAt,
	}
}

func TestReconcileEmpty(t *testing.T) {
	if got := Reconcile(nil); len(got) != 0 {
		t.Errorf("Reconcile(nil) = %d records, want 0", len(got))
	}
	if got := Reconcile([]record.RawMessage{}); len(got) != 0 {
		t.Errorf("Reconcile(empty) = %d records, want 0", len(got))
	}
}

func TestReconcileIdentifiedCollapse(t *testing.T) {
	msgs := []record.RawMessage{
		raw("1", "SM100", "hello", 1000),
		raw("2", "SM100", "hello", 5000),
	}
	got := Reconcile(msgs)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].ID != "2" {
		t.Errorf("survivor = %q, want record 2 (greatest effective time)", got[0].ID)
	}
}

func TestReconcileFallbackMergeWindow(t *testing.T) {
	base := int64(1_700_000_000_000)

	// Inside the window: one canonical record, the later one.
	got := Reconcile([]record.RawMessage{
		raw("1", "", "on my way", base),
		raw("2", "", "on my way", base+MergeWindowMs-1),
	})
	if len(got) != 1 {
		t.Fatalf("inside window: got %d records, want 1", len(got))
	}
	if got[0].ID != "2" {
		t.Errorf("inside window: survivor = %q, want 2", got[0].ID)
	}

	// Just outside: two genuine repeated sends.
	got = Reconcile([]record.RawMessage{
		raw("1", "", "on my way", base),
		raw("2", "", "on my way", base+MergeWindowMs+1),
	})
	if len(got) != 2 {
		t.Fatalf("outside window: got %d records, want 2", len(got))
	}
}

func TestReconcileSignatureSeparatesPayloads(t *testing.T) {
	base := int64(1_700_000_000_000)
	got := Reconcile([]record.RawMessage{
		raw("1", "", "yes", base),
		raw("2", "", "no", base+1),
	})
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (different text never merges)", len(got))
	}
}

func TestReconcileIdentifiedNeverJoinsBuckets(t *testing.T) {
	base := int64(1_700_000_000_000)
	got := Reconcile([]record.RawMessage{
		raw("1", "", "ping", base),
		raw("2", "SM7", "ping", base+10), // identical text, but has a provider id
	})
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (provider id wins over signature)", len(got))
	}
}

func TestReconcileOrdering(t *testing.T) {
	msgs := []record.RawMessage{
		raw("3", "", "c", 3000),
		raw("1", "", "a", 1000),
		raw("2", "", "b", 2000),
		{ID: "0", Direction: record.Inbound, From: "x", To: "y", Text: "broken"}, // no timestamps
	}
	got := Reconcile(msgs)
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if EffectiveTime(got[i-1]) > EffectiveTime(got[i]) {
			t.Fatalf("effective time decreases at index %d", i)
		}
	}
	if got[0].ID != "0" {
		t.Errorf("malformed-timestamp record should sort first, got %q", got[0].ID)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	base := int64(1_700_000_000_000)
	msgs := []record.RawMessage{
		raw("1", "SM1", "a", base),
		raw("2", "SM1", "a", base+500),
		raw("3", "", "b", base+1000),
		raw("4", "", "b", base+2000),
		raw("5", "", "b", base+1000+MergeWindowMs+5000),
	}
	once := Reconcile(msgs)
	twice := Reconcile(once)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("index %d: %q != %q", i, once[i].ID, twice[i].ID)
		}
	}
}

func TestReconcileDeterministicAcrossPermutations(t *testing.T) {
	base := int64(1_700_000_000_000)
	a := []record.RawMessage{
		raw("1", "", "hey", base),
		raw("2", "", "hey", base+100),
		raw("3", "SM9", "hey", base+200),
	}
	b := []record.RawMessage{a[2], a[0], a[1]}

	ga, gb := Reconcile(a), Reconcile(b)
	if len(ga) != len(gb) {
		t.Fatalf("lengths differ: %d vs %d", len(ga), len(gb))
	}
	for i := range ga {
		if ga[i].ID != gb[i].ID {
			t.Errorf("index %d: %q != %q (input order leaked)", i, ga[i].ID, gb[i].ID)
		}
	}
}

func TestEffectiveTimeFallbacks(t *testing.T) {
	m := record.RawMessage{OccurredAtUnixMs: 5, CreatedAtUnixMs: 9}
	if got := EffectiveTime(m); got != 5 {
		t.Errorf("EffectiveTime = %d, want 5 (occurredAt authoritative)", got)
	}
	m.OccurredAtUnixMs = 0
	if got := EffectiveTime(m); got != 9 {
		t.Errorf("EffectiveTime = %d, want 9 (createdAt fallback)", got)
	}
	m.CreatedAtUnixMs = 0
	if got := EffectiveTime(m); got != 0 {
		t.Errorf("EffectiveTime = %d, want 0 (epoch zero)", got)
	}
}
