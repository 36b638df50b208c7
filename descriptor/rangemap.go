package descriptor

import (
	"errors"
	"fmt"
	"sort"
)

// ErrRangeOverlap is reported when an insert would overlap an existing
// sub-range that maps to a different target.
var ErrRangeOverlap = errors.New("descriptor: overlapping sub-ranges with different targets")

// Target is whatever a key range maps to: a descriptor binding location
// or a texture. Targets are compared with ==, so pointer identity for
// textures and value identity for binding locations.
type Target interface{}

// Entry is one stored (id, sub-range) -> target association.
type Entry struct {
	ID       FactoryCharacteristicID
	Subrange ConsecutiveRange
	Target   Target
}

// RangeMap is an ordered container of Entries sorted by (id, sub-range
// begin). For a fixed id the stored sub-ranges are disjoint, and two
// adjacent sub-ranges never map to the same target (they would have been
// merged into one entry).
type RangeMap struct {
	entries []Entry
}

// NewRangeMap creates an empty map.
func NewRangeMap() *RangeMap {
	return &RangeMap{}
}

// Len returns the number of stored entries.
func (m *RangeMap) Len() int { return len(m.entries) }

func keyLess(aID FactoryCharacteristicID, aBegin int, bID FactoryCharacteristicID, bBegin int) bool {
	if aID != bID {
		return aID.less(bID)
	}
	return aBegin < bBegin
}

// lowerBound returns the index of the first entry not ordered before
// (id, begin).
func (m *RangeMap) lowerBound(id FactoryCharacteristicID, begin int) int {
	return sort.Search(len(m.entries), func(i int) bool {
		e := m.entries[i]
		return !keyLess(e.ID, e.Subrange.Begin, id, begin)
	})
}

// Insert adds the association (id, r) -> target. An existing entry for
// the same id that overlaps or touches r and maps to the same target is
// folded into one entry covering the union; an overlap with a different
// target is refused with ErrRangeOverlap and leaves the map unchanged.
func (m *RangeMap) Insert(id FactoryCharacteristicID, r ConsecutiveRange, target Target) error {
	if r.Empty() {
		return fmt.Errorf("descriptor: empty sub-range %v for id %v", r, id)
	}

	// First pass: grow the merged range over same-target neighbors and
	// detect conflicts before touching anything.
	merged := r
	absorb := make(map[int]bool)
	for i := m.lowerBound(id, 0); i < len(m.entries); i++ {
		e := m.entries[i]
		if e.ID != id || e.Subrange.Begin > merged.End {
			break
		}
		if e.Subrange.End < r.Begin {
			continue
		}
		if e.Subrange.Overlaps(r) && e.Target != target {
			return fmt.Errorf("%w: %v and %v for id %v", ErrRangeOverlap, e.Subrange, r, id)
		}
		if e.Target == target {
			merged = merged.Union(e.Subrange)
			absorb[i] = true
		}
	}

	out := make([]Entry, 0, len(m.entries)+1)
	inserted := false
	for i, e := range m.entries {
		if absorb[i] {
			continue
		}
		if !inserted && !keyLess(e.ID, e.Subrange.Begin, id, merged.Begin) {
			out = append(out, Entry{ID: id, Subrange: merged, Target: target})
			inserted = true
		}
		out = append(out, e)
	}
	if !inserted {
		out = append(out, Entry{ID: id, Subrange: merged, Target: target})
	}
	m.entries = out
	return nil
}

// InsertOrReplace adds (id, r) -> target like Insert, but an overlap
// with a different target replaces the overlapped part instead of
// failing: the old entry is trimmed to what r does not cover. Used for
// textures, where new content for a range legitimately supersedes the
// old.
func (m *RangeMap) InsertOrReplace(id FactoryCharacteristicID, r ConsecutiveRange, target Target) {
	if r.Empty() {
		return
	}

	merged := r
	out := make([]Entry, 0, len(m.entries)+2)
	var trimmed []Entry
	for _, e := range m.entries {
		if e.ID != id || !e.Subrange.Overlaps(r) {
			if e.ID == id && e.Target == target && e.Subrange.AdjacentTo(merged) {
				merged = merged.Union(e.Subrange)
				continue
			}
			out = append(out, e)
			continue
		}
		if e.Target == target {
			merged = merged.Union(e.Subrange)
			continue
		}
		// Different target: keep whatever r does not cover.
		if left := (ConsecutiveRange{Begin: e.Subrange.Begin, End: r.Begin}); !left.Empty() {
			trimmed = append(trimmed, Entry{ID: id, Subrange: left, Target: e.Target})
		}
		if right := (ConsecutiveRange{Begin: r.End, End: e.Subrange.End}); !right.Empty() {
			trimmed = append(trimmed, Entry{ID: id, Subrange: right, Target: e.Target})
		}
	}
	out = append(out, Entry{ID: id, Subrange: merged, Target: target})
	out = append(out, trimmed...)
	sort.SliceStable(out, func(i, j int) bool {
		return keyLess(out[i].ID, out[i].Subrange.Begin, out[j].ID, out[j].Subrange.Begin)
	})
	m.entries = out
}

// Find returns the target stored for (id, index), if any.
func (m *RangeMap) Find(id FactoryCharacteristicID, index int) (Target, bool) {
	i := m.lowerBound(id, 0)
	for ; i < len(m.entries); i++ {
		e := m.entries[i]
		if e.ID != id || e.Subrange.Begin > index {
			break
		}
		if e.Subrange.Contains(index) {
			return e.Target, true
		}
	}
	return nil, false
}

// ForEachOverlapping calls fn for every entry of id whose sub-range
// overlaps r, in increasing order.
func (m *RangeMap) ForEachOverlapping(id FactoryCharacteristicID, r ConsecutiveRange, fn func(Entry)) {
	for i := m.lowerBound(id, 0); i < len(m.entries); i++ {
		e := m.entries[i]
		if e.ID != id || e.Subrange.Begin >= r.End {
			break
		}
		if e.Subrange.Overlaps(r) {
			fn(e)
		}
	}
}

// EntriesFor returns the stored entries of id, in increasing sub-range
// order.
func (m *RangeMap) EntriesFor(id FactoryCharacteristicID) []Entry {
	var out []Entry
	for i := m.lowerBound(id, 0); i < len(m.entries); i++ {
		e := m.entries[i]
		if e.ID != id {
			break
		}
		out = append(out, e)
	}
	return out
}
