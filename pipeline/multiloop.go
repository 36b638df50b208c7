package pipeline

// MultiLoop is an N-level nested for loop as explicit state: one counter
// and one [begin, end) bound per level, leftmost level outermost. Because
// the counters live here and not on the stack, the factory can yield
// between iterations and resume at the exact combination it left off.
type MultiLoop struct {
	counters []int
	begins   []int
	ends     []int
	done     bool
}

// NewMultiLoop creates a loop over the given bounds. An empty bounds list
// or any empty range yields a loop that is finished immediately.
func NewMultiLoop(begins, ends []int) *MultiLoop {
	ml := &MultiLoop{
		counters: make([]int, len(begins)),
		begins:   append([]int(nil), begins...),
		ends:     append([]int(nil), ends...),
	}
	copy(ml.counters, begins)
	if len(begins) == 0 {
		ml.done = true
	}
	for i := range begins {
		if ends[i] <= begins[i] {
			ml.done = true
		}
	}
	return ml
}

// Finished reports whether all combinations have been produced.
func (ml *MultiLoop) Finished() bool { return ml.done }

// Current returns the current counter per level. The slice is owned by the
// loop and valid until the next Advance.
func (ml *MultiLoop) Current() []int { return ml.counters }

// Advance steps to the next combination in lexicographic order. It reports
// whether the innermost level wrapped around, which is the natural point
// for a generator to yield its worker.
func (ml *MultiLoop) Advance() (wrapped bool) {
	if ml.done {
		return false
	}
	i := len(ml.counters) - 1
	ml.counters[i]++
	if ml.counters[i] < ml.ends[i] {
		return false
	}
	for i >= 0 && ml.counters[i] >= ml.ends[i] {
		ml.counters[i] = ml.begins[i]
		i--
		if i >= 0 {
			ml.counters[i]++
		}
	}
	if i < 0 {
		ml.done = true
	}
	return true
}
