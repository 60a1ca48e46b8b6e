package lsmtree

// Kind distinguishes the two Level backing stores. The Migration Engine is
// written once against the Level capability set and never switches on Kind
// itself — Kind exists for callers (the Tree facade, Stat) that need to
// report or enforce "level 0 must be MAIN".
type Kind uint8

const (
	// Main is an in-memory, array-backed level.
	Main Kind = iota
	// Disk is a file-backed level.
	Disk
)

// Level is the capability set every sorted level exposes, whether backed
// by an in-memory array or an on-disk file. The Migration Engine and the
// Tree facade are written once against this interface; MAIN and DISK are
// two implementations, not a class hierarchy.
//
// Observable side effects: Write and Invalidate mutate the level. Read,
// IsValid, and Search are pure with respect to tree state; the disk
// implementation uses positioned reads and writes (ReadAt/WriteAt), so no
// shared file offset moves either.
type Level interface {
	Kind() Kind
	Capacity() int
	Used() int
	setUsed(n int)

	// Read returns the record at pos. Precondition: pos < Capacity().
	Read(pos int) (Record, error)

	// Write stores rec at pos and marks the slot VALID.
	// Precondition: pos < Capacity().
	Write(pos int, rec Record) error

	// Invalidate resets the slot at pos to the canonical INVAL record.
	Invalidate(pos int) error

	// IsValid reports whether the slot at pos is occupied.
	IsValid(pos int) (bool, error)

	// Search returns the index of key within [0, Used()) if present, or
	// the insertion index — the first position whose key is >= key, or
	// Used() if every key in the occupied prefix is smaller.
	Search(key int64) (int, error)

	// Membership, if attached, is the optional approximate-membership
	// hook consulted by Get before Search.
	Membership() MembershipHook
	SetMembership(MembershipHook)

	// Index, if attached, is the optional ordered secondary index hook
	// consulted around Write during insert and migration.
	Index() OrderedIndexHook
	SetIndex(OrderedIndexHook)

	// Close releases any resources the level owns (a file handle, for
	// DISK levels). MAIN levels' Close is a no-op.
	Close() error
}

// searchKey performs the binary search for key over [0, used), shared by
// both Level implementations so the search logic lives in exactly one
// place. Returns the matching index or the insertion point.
func searchKey(used int, key int64, keyAt func(int) int64) int {
	lo, hi := 0, used
	for lo < hi {
		mid := (lo + hi) / 2
		if keyAt(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
