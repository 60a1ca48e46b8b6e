package lsmtree

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lsmtree: remove %q: %w", path, err)
	}
	return nil
}

// Options configures the optional hooks and disk placement of a Tree.
// Level layout (name, total levels, in-memory levels, capacities) is part
// of Init's explicit argument list, not Options, since it is part of the
// public init(...) contract rather than an operational knob.
type Options struct {
	// DiskDir is the directory disk-level files are created in.
	DiskDir string

	// Bloom filter membership hook, attached to every level when enabled.
	BloomFilterEnabled     bool
	BloomFalsePositiveRate float64
	BloomExpectedElements  int

	// Ordered secondary index hook, attached to every level when enabled.
	OrderedIndexEnabled bool
	OrderedIndexStep    int
}

// Tree is the front door exposing Put/Delete/Get/Range/Load/Stat. It
// dispatches writes to level 0 and walks all levels shallow-to-deep for
// reads, over a fixed-width level hierarchy rather than a
// multi-SSTable-per-level compaction scheme.
type Tree struct {
	name   string
	levels []Level
	mu     sync.RWMutex
}

// Init constructs a new tree. name identifies it (and, for disk levels,
// the on-disk file prefix). totalLevels is N; mainLevels is M, the count
// of in-memory levels at the shallow end (0 <= M <= N, level 0 must be
// MAIN so M >= 1). capacities must have exactly totalLevels entries.
//
// Capacities are conventionally non-decreasing (I5), but Init does not
// enforce it: I5 is an assumption the caller's configuration is expected
// to uphold, not a core-level invariant, and the canonical worked example
// ({4, 7, 13, 10}) is itself not monotone. A tree with a smaller level
// deeper than a shallower one still behaves correctly; it simply cascades
// migration into that level more often.
func Init(name string, totalLevels, mainLevels int, capacities []int, opts Options) (*Tree, error) {
	if totalLevels < 1 {
		return nil, fmt.Errorf("%w: total_levels must be at least 1", ErrBadConfig)
	}
	if mainLevels < 1 || mainLevels > totalLevels {
		return nil, fmt.Errorf("%w: main_levels must satisfy 1 <= M <= N", ErrBadConfig)
	}
	if len(capacities) != totalLevels {
		return nil, fmt.Errorf("%w: need exactly %d capacities, got %d", ErrBadConfig, totalLevels, len(capacities))
	}

	t := &Tree{name: name}
	for i := 0; i < totalLevels; i++ {
		var lvl Level
		if i < mainLevels {
			lvl = newMainLevel(capacities[i])
		} else {
			path := filepath.Join(opts.DiskDir, fmt.Sprintf("%s.level%d.bin", name, i))
			dl, err := newDiskLevel(path, capacities[i])
			if err != nil {
				t.closeLevels()
				return nil, err
			}
			lvl = dl
		}
		if err := attachHooks(lvl, opts); err != nil {
			t.closeLevels()
			return nil, err
		}
		t.levels = append(t.levels, lvl)
	}
	return t, nil
}

// attachHooks wires the configured membership/index hooks onto lvl, then
// rebuilds them from whatever valid records the level already holds — a
// reopened disk level may not be empty, and a freshly attached Bloom
// filter that never saw those keys would falsely say "definitely absent"
// for data that is actually on disk (MembershipHook must never produce a
// false negative).
func attachHooks(lvl Level, opts Options) error {
	if opts.BloomFilterEnabled {
		n := opts.BloomExpectedElements
		if n < 1 {
			n = lvl.Capacity()
		}
		rate := opts.BloomFalsePositiveRate
		if rate <= 0 || rate >= 1 {
			rate = 0.01
		}
		lvl.SetMembership(NewBloomFilter(n, rate))
	}
	if opts.OrderedIndexEnabled {
		step := opts.OrderedIndexStep
		if step < 1 {
			step = 8
		}
		lvl.SetIndex(NewSparseIndex(step))
	}
	return rebuildHooksFromExisting(lvl)
}

// rebuildHooksFromExisting replays every already-valid record in lvl
// through its just-attached hooks, so a reopened non-empty disk level
// starts with hooks consistent with its actual contents instead of
// reporting on an empty slate.
func rebuildHooksFromExisting(lvl Level) error {
	membership := lvl.Membership()
	index := lvl.Index()
	if membership == nil && index == nil {
		return nil
	}
	for pos := 0; pos < lvl.Used(); pos++ {
		rec, err := lvl.Read(pos)
		if err != nil {
			return err
		}
		if membership != nil {
			membership.Add(rec.Key)
		}
		if index != nil {
			index.Observe(rec.Key, pos)
		}
	}
	return nil
}

func (t *Tree) closeLevels() {
	for _, lvl := range t.levels {
		_ = lvl.Close()
	}
}

// Destroy releases all memory, closes and unlinks every disk-level file.
func (t *Tree) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, lvl := range t.levels {
		if dl, ok := lvl.(*diskLevel); ok {
			path := dl.path()
			if err := dl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := removeFile(path); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := lvl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.levels = nil
	return firstErr
}

// Put inserts or updates key with val. Writes always target level 0.
func (t *Tree) Put(key, val int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLevel0(Record{Key: key, Value: val, Op: OpAdd, Valid: true})
}

// Delete writes a delete for key into level 0. If level 0 already holds a
// record for key, that record is removed outright and no tombstone is
// kept; otherwise a tombstone is inserted at level 0, where it shadows the
// key on deeper levels.
func (t *Tree) Delete(key int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLevel0(Record{Key: key, Op: OpDel, Valid: true})
}

// insertLevel0 triggers migration before inserting whenever level 0 is
// saturated; insert itself never migrates.
func (t *Tree) insertLevel0(rec Record) error {
	level0 := t.levels[0]
	if level0.Used() == level0.Capacity() {
		if err := t.migrate(0); err != nil {
			return err
		}
	}
	return insertInto(level0, rec)
}

// insertInto implements the Level Insert decision table: update in place
// on a key match with an ADD, shrink the level on a key match with a DEL,
// otherwise shift right and insert. level must be MAIN (level 0 always
// is).
func insertInto(level Level, rec Record) error {
	main, ok := level.(*mainLevel)
	if !ok {
		return fmt.Errorf("lsmtree: insert target must be a MAIN level")
	}

	pos, err := main.Search(rec.Key)
	if err != nil {
		return err
	}

	var cur Record
	if pos < main.used {
		cur = main.records[pos]
	}
	matches := pos < main.used && cur.Valid && cur.Key == rec.Key

	switch {
	case matches && rec.Op == OpAdd:
		return main.Write(pos, rec)

	case matches && rec.Op == OpDel:
		main.shiftLeft(pos)
		main.used--
		return nil

	default:
		if main.used >= main.Capacity() {
			return ErrCapacityExhausted
		}
		main.shiftRight(pos)
		main.used++
		return main.Write(pos, rec)
	}
}

// Get returns the value for key and whether it is present (false both
// when the key was never written and when it was tombstoned).
func (t *Tree) Get(key int64) (int64, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, lvl := range t.levels {
		if hook := lvl.Membership(); hook != nil && !hook.Maybe(key) {
			continue
		}
		pos, err := lvl.Search(key)
		if err != nil {
			return 0, false, err
		}
		if pos >= lvl.Used() {
			continue
		}
		rec, err := lvl.Read(pos)
		if err != nil {
			return 0, false, err
		}
		if !rec.Valid || rec.Key != key {
			continue
		}
		if rec.Op == OpDel {
			return 0, false, nil
		}
		return rec.Value, true, nil
	}
	return 0, false, nil
}

// Range collects every present key strictly inside (lo, hi), shallowest
// occurrence wins on conflict, tombstones are dropped after accumulation.
// Result order is unspecified; callers sort if they need it.
func (t *Tree) Range(lo, hi int64) ([]Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[int64]Record)
	for _, lvl := range t.levels {
		used := lvl.Used()
		for i := 0; i < used; i++ {
			rec, err := lvl.Read(i)
			if err != nil {
				return nil, err
			}
			if !rec.Valid || rec.Key <= lo || rec.Key >= hi {
				continue
			}
			if _, ok := seen[rec.Key]; ok {
				continue
			}
			seen[rec.Key] = rec
		}
	}

	result := make([]Record, 0, len(seen))
	for _, rec := range seen {
		if rec.Op == OpDel {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

// LevelStat summarizes one level for Stat.
type LevelStat struct {
	Index int
	Kind  Kind
	Used  int
}

// Stat reports the total valid-record count, per-level counts for
// non-empty levels, and a dump of every record with its level index.
func (t *Tree) Stat() (total int, perLevel []LevelStat, dump []struct {
	Level  int
	Record Record
}, err error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, lvl := range t.levels {
		used := lvl.Used()
		if used == 0 {
			continue
		}
		perLevel = append(perLevel, LevelStat{Index: i, Kind: lvl.Kind(), Used: used})
		total += used
		for p := 0; p < used; p++ {
			rec, readErr := lvl.Read(p)
			if readErr != nil {
				return 0, nil, nil, readErr
			}
			dump = append(dump, struct {
				Level  int
				Record Record
			}{Level: i, Record: rec})
		}
	}
	return total, perLevel, dump, nil
}

// Load ingests every (key, value) pair decoded by next until next returns
// the LoadEOF() sentinel, inserting each pair as Put would. The write lock
// is held for the whole load, so it is atomic with respect to every other
// operation.
func (t *Tree) Load(next func() (key, val int64, err error)) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for {
		key, val, err := next()
		if err == errLoadEOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if err := t.insertLevel0(Record{Key: key, Value: val, Op: OpAdd, Valid: true}); err != nil {
			return count, err
		}
		count++
	}
}

// errLoadEOF is the sentinel a Load source function returns to signal a
// clean end of stream; defined here so callers in cmd/intkv can reuse it
// without importing io directly into this package's public surface.
var errLoadEOF = fmt.Errorf("lsmtree: load eof")

// LoadEOF is the sentinel Load's next function should return to end the
// stream cleanly.
func LoadEOF() error { return errLoadEOF }
