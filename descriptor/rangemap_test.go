package descriptor

import (
	"errors"
	"testing"
)

func rng(begin, end int) ConsecutiveRange {
	return ConsecutiveRange{Begin: begin, End: end}
}

func TestInsertMergesAdjacentSameTarget(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{FactoryIndex: 0, CharacteristicIndex: 1}

	if err := m.Insert(id, rng(0, 5), "tex"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert(id, rng(5, 10), "tex"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entries := m.EntriesFor(id)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 merged entry", len(entries))
	}
	if entries[0].Subrange != rng(0, 10) {
		t.Errorf("merged sub-range = %v, want [0, 10)", entries[0].Subrange)
	}
}

func TestInsertMergesOverlappingSameTarget(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	if err := m.Insert(id, rng(0, 5), "tex"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert(id, rng(8, 12), "tex"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Bridges both existing entries.
	if err := m.Insert(id, rng(3, 9), "tex"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entries := m.EntriesFor(id)
	if len(entries) != 1 || entries[0].Subrange != rng(0, 12) {
		t.Errorf("entries = %v, want one entry covering [0, 12)", entries)
	}
}

func TestInsertRefusesOverlapWithDifferentTarget(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	if err := m.Insert(id, rng(0, 5), "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert(id, rng(3, 8), "b"); !errors.Is(err, ErrRangeOverlap) {
		t.Fatalf("overlap error = %v, want ErrRangeOverlap", err)
	}

	// The refused insert must not have disturbed the map.
	entries := m.EntriesFor(id)
	if len(entries) != 1 || entries[0].Subrange != rng(0, 5) || entries[0].Target != "a" {
		t.Errorf("map changed by a refused insert: %v", entries)
	}
}

func TestInsertAllowsAdjacentDifferentTargets(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	if err := m.Insert(id, rng(0, 5), "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert(id, rng(5, 10), "b"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := m.Len(); got != 2 {
		t.Errorf("got %d entries, want 2", got)
	}
}

func TestInsertRejectsEmptyRange(t *testing.T) {
	m := NewRangeMap()
	if err := m.Insert(FactoryCharacteristicID{}, rng(3, 3), "a"); err == nil {
		t.Error("inserting an empty sub-range should fail")
	}
}

func TestFind(t *testing.T) {
	m := NewRangeMap()
	idA := FactoryCharacteristicID{FactoryIndex: 0, CharacteristicIndex: 0}
	idB := FactoryCharacteristicID{FactoryIndex: 0, CharacteristicIndex: 1}

	if err := m.Insert(idA, rng(0, 5), "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(idB, rng(2, 4), "b"); err != nil {
		t.Fatal(err)
	}

	if target, ok := m.Find(idA, 3); !ok || target != "a" {
		t.Errorf("Find(idA, 3) = %v, %v; want a, true", target, ok)
	}
	if target, ok := m.Find(idB, 3); !ok || target != "b" {
		t.Errorf("Find(idB, 3) = %v, %v; want b, true", target, ok)
	}
	if _, ok := m.Find(idA, 5); ok {
		t.Error("Find past the end of a half-open range succeeded")
	}
	if _, ok := m.Find(idB, 0); ok {
		t.Error("Find before the sub-range succeeded")
	}
}

func TestInsertOrReplaceTrimsOverlappedEntry(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	m.InsertOrReplace(id, rng(0, 10), "old")
	m.InsertOrReplace(id, rng(3, 6), "new")

	entries := m.EntriesFor(id)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want old-left, new, old-right: %v", len(entries), entries)
	}
	if entries[0].Subrange != rng(0, 3) || entries[0].Target != "old" {
		t.Errorf("left remainder = %v", entries[0])
	}
	if entries[1].Subrange != rng(3, 6) || entries[1].Target != "new" {
		t.Errorf("replacement = %v", entries[1])
	}
	if entries[2].Subrange != rng(6, 10) || entries[2].Target != "old" {
		t.Errorf("right remainder = %v", entries[2])
	}
}

func TestInsertOrReplaceSwallowsCoveredEntries(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	m.InsertOrReplace(id, rng(2, 4), "a")
	m.InsertOrReplace(id, rng(6, 8), "b")
	m.InsertOrReplace(id, rng(0, 10), "c")

	entries := m.EntriesFor(id)
	if len(entries) != 1 || entries[0].Subrange != rng(0, 10) || entries[0].Target != "c" {
		t.Errorf("entries = %v, want one entry [0, 10) -> c", entries)
	}
}

func TestInsertOrReplaceMergesSameTarget(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	m.InsertOrReplace(id, rng(0, 5), "a")
	m.InsertOrReplace(id, rng(5, 10), "a")

	entries := m.EntriesFor(id)
	if len(entries) != 1 || entries[0].Subrange != rng(0, 10) {
		t.Errorf("entries = %v, want one merged entry [0, 10)", entries)
	}
}

func TestForEachOverlapping(t *testing.T) {
	m := NewRangeMap()
	id := FactoryCharacteristicID{}

	for i, target := range []string{"a", "b", "c"} {
		if err := m.Insert(id, rng(i*4, i*4+2), target); err != nil {
			t.Fatal(err)
		}
	}

	var hit []string
	m.ForEachOverlapping(id, rng(1, 9), func(e Entry) {
		hit = append(hit, e.Target.(string))
	})
	if len(hit) != 3 || hit[0] != "a" || hit[1] != "b" || hit[2] != "c" {
		t.Errorf("overlapping targets = %v, want [a b c]", hit)
	}

	hit = nil
	m.ForEachOverlapping(id, rng(2, 4), func(e Entry) {
		hit = append(hit, e.Target.(string))
	})
	if len(hit) != 0 {
		t.Errorf("gap between entries reported overlaps: %v", hit)
	}
}

func TestEntriesSortedAcrossIDs(t *testing.T) {
	m := NewRangeMap()
	idA := FactoryCharacteristicID{FactoryIndex: 1, CharacteristicIndex: 0}
	idB := FactoryCharacteristicID{FactoryIndex: 0, CharacteristicIndex: 2}

	if err := m.Insert(idA, rng(0, 2), "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(idB, rng(0, 2), "b"); err != nil {
		t.Fatal(err)
	}

	if got := m.EntriesFor(idA); len(got) != 1 || got[0].Target != "a" {
		t.Errorf("EntriesFor(idA) = %v", got)
	}
	if got := m.EntriesFor(idB); len(got) != 1 || got[0].Target != "b" {
		t.Errorf("EntriesFor(idB) = %v", got)
	}
}
