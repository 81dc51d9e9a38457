package availability

import (
	"reflect"
	"testing"

	"curehub-backend/internal/principal"
)

func TestNormalizeSlotsCollapsesDuplicates(t *testing.T) {
	got := NormalizeSlots([]string{"10:00", "10:00", "11:00", " ", "09:00"})
	want := []string{"09:00", "10:00", "11:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestApplyAddUnionsExistingDate(t *testing.T) {
	entries := []principal.AvailabilityEntry{
		{Date: "2025-06-01", TimeSlots: []string{"10:00"}},
	}
	got := ApplyAdd(entries, "2025-06-01", []string{"10:00", "10:00", "11:00"})
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	want := []string{"10:00", "11:00"}
	if !reflect.DeepEqual(got[0].TimeSlots, want) {
		t.Fatalf("expected %v, got %v", want, got[0].TimeSlots)
	}
}

func TestApplyAddIsIdempotent(t *testing.T) {
	entries := ApplyAdd(nil, "2025-06-01", []string{"10:00", "11:00"})
	again := ApplyAdd(entries, "2025-06-01", []string{"10:00", "11:00"})
	if !reflect.DeepEqual(entries, again) {
		t.Fatalf("expected idempotent union, got %v then %v", entries, again)
	}
}

func TestApplyAddKeepsDatesOrdered(t *testing.T) {
	entries := ApplyAdd(nil, "2025-06-03", []string{"09:00"})
	entries = ApplyAdd(entries, "2025-06-01", []string{"09:00"})
	entries = ApplyAdd(entries, "2025-06-02", []string{"09:00"})

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		dates = append(dates, e.Date)
	}
	want := []string{"2025-06-01", "2025-06-02", "2025-06-03"}
	if !reflect.DeepEqual(dates, want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
}

func TestApplyRemoveKeepsOtherSlots(t *testing.T) {
	entries := []principal.AvailabilityEntry{
		{Date: "2025-06-01", TimeSlots: []string{"10:00", "11:00"}},
	}
	got := ApplyRemove(entries, "2025-06-01", "10:00")
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0].TimeSlots, []string{"11:00"}) {
		t.Fatalf("unexpected slots: %v", got[0].TimeSlots)
	}
}

func TestApplyRemoveLastSlotPrunesDate(t *testing.T) {
	entries := []principal.AvailabilityEntry{
		{Date: "2025-06-01", TimeSlots: []string{"10:00"}},
		{Date: "2025-06-02", TimeSlots: []string{"09:00"}},
	}
	got := ApplyRemove(entries, "2025-06-01", "10:00")
	if len(got) != 1 {
		t.Fatalf("expected date entry to be pruned, got %v", got)
	}
	if got[0].Date != "2025-06-02" {
		t.Fatalf("unexpected surviving entry: %v", got[0])
	}
	if len(SlotsFor(got, "2025-06-01")) != 0 {
		t.Fatalf("expected no slots for pruned date")
	}
}

func TestSlotsForUnknownDateIsEmpty(t *testing.T) {
	got := SlotsFor(nil, "2025-06-01")
	if len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestHasSlot(t *testing.T) {
	entries := []principal.AvailabilityEntry{
		{Date: "2025-06-01", TimeSlots: []string{"10:00", "11:00"}},
	}
	if !HasSlot(entries, "2025-06-01", "10:00") {
		t.Fatalf("expected slot to be present")
	}
	if HasSlot(entries, "2025-06-01", "12:00") {
		t.Fatalf("expected slot to be absent")
	}
	if HasSlot(entries, "2025-06-02", "10:00") {
		t.Fatalf("expected unknown date to have no slots")
	}
}
