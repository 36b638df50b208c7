// Package descriptor maintains the mapping from pipeline factory
// characteristics to descriptor bindings and textures. Keys are
// (factory characteristic id, consecutive sub-range) pairs kept in
// sorted, non-overlapping order per id; adjacent sub-ranges mapping to
// the same target are folded into one entry.
package descriptor

import (
	"fmt"

	"github.com/ShinkuKira21/linuxviewer/pipeline"
)

// FactoryCharacteristicID identifies one characteristic range of one
// pipeline factory.
type FactoryCharacteristicID struct {
	FactoryIndex        pipeline.FactoryIndex
	CharacteristicIndex int
}

func (id FactoryCharacteristicID) String() string {
	return fmt.Sprintf("{factory:%d characteristic:%d}", id.FactoryIndex, id.CharacteristicIndex)
}

// less orders ids for the sorted containers.
func (id FactoryCharacteristicID) less(other FactoryCharacteristicID) bool {
	if id.FactoryIndex != other.FactoryIndex {
		return id.FactoryIndex < other.FactoryIndex
	}
	return id.CharacteristicIndex < other.CharacteristicIndex
}

// ConsecutiveRange is a half-open [Begin, End) sub-range of a
// characteristic's fill-index space.
type ConsecutiveRange struct {
	Begin int
	End   int
}

func (r ConsecutiveRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Begin, r.End)
}

// Empty reports whether the range covers nothing.
func (r ConsecutiveRange) Empty() bool { return r.End <= r.Begin }

// Contains reports whether index falls inside the range.
func (r ConsecutiveRange) Contains(index int) bool {
	return index >= r.Begin && index < r.End
}

// Overlaps reports whether the two ranges share at least one index.
func (r ConsecutiveRange) Overlaps(other ConsecutiveRange) bool {
	return r.Begin < other.End && other.Begin < r.End
}

// AdjacentTo reports whether other starts exactly where r ends or vice
// versa, so that their union is itself consecutive.
func (r ConsecutiveRange) AdjacentTo(other ConsecutiveRange) bool {
	return r.End == other.Begin || other.End == r.Begin
}

// Union returns the smallest range covering both. Only meaningful for
// overlapping or adjacent ranges.
func (r ConsecutiveRange) Union(other ConsecutiveRange) ConsecutiveRange {
	out := r
	if other.Begin < out.Begin {
		out.Begin = other.Begin
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}
