package availability

import (
	"sort"
	"strings"

	"curehub-backend/internal/principal"
)

// NormalizeSlots trims, drops empties, collapses duplicates and sorts a slot
// list, turning arbitrary input into the canonical set form the ledger stores.
func NormalizeSlots(slots []string) []string {
	seen := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ApplyAdd merges newSlots into the entry for date (set union) or appends a
// new entry. Entries stay ordered by date.
func ApplyAdd(entries []principal.AvailabilityEntry, date string, newSlots []string) []principal.AvailabilityEntry {
	newSlots = NormalizeSlots(newSlots)
	if len(newSlots) == 0 {
		return entries
	}

	out := make([]principal.AvailabilityEntry, 0, len(entries)+1)
	merged := false
	for _, e := range entries {
		if e.Date == date {
			e.TimeSlots = NormalizeSlots(append(append([]string{}, e.TimeSlots...), newSlots...))
			merged = true
		}
		out = append(out, e)
	}
	if !merged {
		out = append(out, principal.AvailabilityEntry{Date: date, TimeSlots: newSlots})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ApplyRemove deletes one slot from the entry for date; an entry whose slot
// set becomes empty is pruned entirely.
func ApplyRemove(entries []principal.AvailabilityEntry, date, slot string) []principal.AvailabilityEntry {
	out := make([]principal.AvailabilityEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date != date {
			out = append(out, e)
			continue
		}
		remaining := make([]string, 0, len(e.TimeSlots))
		for _, s := range e.TimeSlots {
			if s != slot {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			continue
		}
		e.TimeSlots = remaining
		out = append(out, e)
	}
	return out
}

// SlotsFor returns the slot set for date, empty when the ledger has no entry.
func SlotsFor(entries []principal.AvailabilityEntry, date string) []string {
	for _, e := range entries {
		if e.Date == date {
			return NormalizeSlots(e.TimeSlots)
		}
	}
	return []string{}
}

func HasSlot(entries []principal.AvailabilityEntry, date, slot string) bool {
	for _, e := range entries {
		if e.Date != date {
			continue
		}
		for _, s := range e.TimeSlots {
			if s == slot {
				return true
			}
		}
	}
	return false
}
