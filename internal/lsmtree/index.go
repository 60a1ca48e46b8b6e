package lsmtree

import "sort"

// OrderedIndexHook is the optional per-level ordered index consulted around
// Write during insert and migration. Unlike a B-tree used as the primary
// store for a memtable, this hook only ever narrows the binary search
// window over a level that is already sorted and already supports
// O(log n) search on its own — so it is a sparse secondary index, not a
// replacement primary structure.
type OrderedIndexHook interface {
	// Observe records that key lives at position pos in the level this
	// hook is attached to.
	Observe(key int64, pos int)
	// Clear removes any entries this hook holds for pos (used when the
	// migration engine invalidates a source slot).
	Clear(pos int)
	// Bounds returns a [lo, hi) search window known to contain key, or
	// ok=false if the hook has no information narrower than the full
	// level.
	Bounds(key int64) (lo, hi int, ok bool)
}

// SparseIndex samples writes to every step-th position (positions divisible
// by step) into a small ordered table of (key, pos) pairs. Since the level itself already maintains global sort
// order, the index only needs enough entries to turn an O(log capacity)
// search into an O(log samples) bracket followed by a short linear/binary
// scan.
type SparseIndex struct {
	step    int
	entries []sparseEntry
}

type sparseEntry struct {
	key int64
	pos int
}

// NewSparseIndex creates an index that samples the key written at every
// position divisible by step. step must be >= 1.
func NewSparseIndex(step int) *SparseIndex {
	if step < 1 {
		step = 1
	}
	return &SparseIndex{step: step}
}

func (s *SparseIndex) Observe(key int64, pos int) {
	if pos%s.step != 0 {
		return
	}
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].pos >= pos })
	if i < len(s.entries) && s.entries[i].pos == pos {
		s.entries[i].key = key
		return
	}
	s.entries = append(s.entries, sparseEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = sparseEntry{key: key, pos: pos}
}

func (s *SparseIndex) Clear(pos int) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].pos >= pos })
	if i < len(s.entries) && s.entries[i].pos == pos {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
}

// Bounds brackets key between the nearest sampled entries at or below and
// above it. A sample only ever describes the position it was taken at, so
// the upper bound is only safe when an entry with key >= the query exists:
// past the last sample, nothing is known about what (if anything) lies
// between it and the end of the level, and guessing would risk excluding
// the real position from a narrowed search window.
func (s *SparseIndex) Bounds(key int64) (lo, hi int, ok bool) {
	if len(s.entries) == 0 {
		return 0, 0, false
	}
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if i == len(s.entries) {
		return 0, 0, false
	}
	lo = 0
	if i > 0 {
		lo = s.entries[i-1].pos
	}
	hi = s.entries[i].pos + 1
	return lo, hi, true
}
