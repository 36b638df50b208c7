package descriptor

import "testing"

func TestConsecutiveRange(t *testing.T) {
	r := rng(2, 5)

	if r.Empty() || !rng(3, 3).Empty() || !rng(4, 2).Empty() {
		t.Error("Empty misclassifies ranges")
	}
	if !r.Contains(2) || !r.Contains(4) || r.Contains(5) || r.Contains(1) {
		t.Error("Contains must treat the range as half open")
	}
	if !r.Overlaps(rng(4, 8)) || r.Overlaps(rng(5, 8)) || r.Overlaps(rng(0, 2)) {
		t.Error("Overlaps must treat the range as half open")
	}
	if !r.AdjacentTo(rng(5, 8)) || !r.AdjacentTo(rng(0, 2)) || r.AdjacentTo(rng(6, 8)) {
		t.Error("AdjacentTo misclassifies neighbors")
	}
	if got := r.Union(rng(4, 8)); got != rng(2, 8) {
		t.Errorf("Union = %v, want [2,8)", got)
	}
}

func TestFactoryCharacteristicIDOrder(t *testing.T) {
	a := FactoryCharacteristicID{FactoryIndex: 0, CharacteristicIndex: 5}
	b := FactoryCharacteristicID{FactoryIndex: 1, CharacteristicIndex: 0}
	c := FactoryCharacteristicID{FactoryIndex: 1, CharacteristicIndex: 2}

	if !a.less(b) || !b.less(c) || c.less(a) {
		t.Error("ids must order by factory first, characteristic second")
	}
	if a.less(a) {
		t.Error("less must be a strict order")
	}
}
