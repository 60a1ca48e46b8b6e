package lsmtree

import (
	"fmt"
	"os"
)

// diskLevel is the file-backed Level implementation. The backing file is
// opened once at construction and held for the level's lifetime; every
// operation addresses pos*recordSize directly and performs exactly one
// fixed-width read or write. The core never caches disk pages here —
// that is left to an external hook. Reads and writes use ReadAt/WriteAt
// (pread/pwrite) rather than Seek+Read so that concurrent readers
// (permitted by the Tree facade's RWMutex) never race on a shared file
// offset.
type diskLevel struct {
	file       *os.File
	capacity   int
	used       int
	membership MembershipHook
	index      OrderedIndexHook
}

// newDiskLevel opens (creating if absent) the backing file at path and
// sizes it to exactly capacity*recordSize bytes, all-INVAL. If the file
// already exists with the right size, its contents are trusted as-is
// (used is recomputed by scanning the valid prefix).
func newDiskLevel(path string, capacity int) (*diskLevel, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lsmtree: open disk level %q: %w", path, err)
	}

	l := &diskLevel{file: f, capacity: capacity}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("lsmtree: stat disk level %q: %w", path, err)
	}

	wantSize := int64(capacity) * recordSize
	if info.Size() != wantSize {
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("lsmtree: size disk level %q: %w", path, err)
		}
		buf := invalidRecord.encode()
		for i := 0; i < capacity; i++ {
			if _, err := f.WriteAt(buf[:], int64(i)*recordSize); err != nil {
				f.Close()
				return nil, fmt.Errorf("lsmtree: init disk level %q: %w", path, err)
			}
		}
		return l, nil
	}

	used, err := scanUsedPrefix(l)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.used = used
	return l, nil
}

// scanUsedPrefix recomputes Used() for a freshly opened disk level by
// reading forward until the first INVAL slot is seen (I1: the valid
// prefix is contiguous).
func scanUsedPrefix(l *diskLevel) (int, error) {
	for i := 0; i < l.capacity; i++ {
		rec, err := l.Read(i)
		if err != nil {
			return 0, err
		}
		if !rec.Valid {
			return i, nil
		}
	}
	return l.capacity, nil
}

func (l *diskLevel) Kind() Kind    { return Disk }
func (l *diskLevel) Capacity() int { return l.capacity }
func (l *diskLevel) Used() int     { return l.used }
func (l *diskLevel) setUsed(n int) { l.used = n }

func (l *diskLevel) Read(pos int) (Record, error) {
	if pos < 0 || pos >= l.capacity {
		return Record{}, ErrOutOfBounds
	}
	var buf [recordSize]byte
	if _, err := l.file.ReadAt(buf[:], int64(pos)*recordSize); err != nil {
		return Record{}, fmt.Errorf("lsmtree: read disk level at %d: %w", pos, err)
	}
	return decodeRecord(buf[:]), nil
}

func (l *diskLevel) Write(pos int, rec Record) error {
	if pos < 0 || pos >= l.capacity {
		return ErrOutOfBounds
	}
	rec.Valid = true
	buf := rec.encode()
	if _, err := l.file.WriteAt(buf[:], int64(pos)*recordSize); err != nil {
		return fmt.Errorf("lsmtree: write disk level at %d: %w", pos, err)
	}
	if l.membership != nil {
		l.membership.Add(rec.Key)
	}
	if l.index != nil {
		l.index.Observe(rec.Key, pos)
	}
	return nil
}

func (l *diskLevel) Invalidate(pos int) error {
	if pos < 0 || pos >= l.capacity {
		return ErrOutOfBounds
	}
	buf := invalidRecord.encode()
	if _, err := l.file.WriteAt(buf[:], int64(pos)*recordSize); err != nil {
		return fmt.Errorf("lsmtree: invalidate disk level at %d: %w", pos, err)
	}
	if l.index != nil {
		l.index.Clear(pos)
	}
	return nil
}

func (l *diskLevel) IsValid(pos int) (bool, error) {
	rec, err := l.Read(pos)
	if err != nil {
		return false, err
	}
	return rec.Valid, nil
}

// Search performs one random read per probe, by design: the core does not
// cache disk pages, leaving that to an external hook if provided. An
// attached OrderedIndexHook narrows the probed window, trading its sample
// density for fewer random reads.
func (l *diskLevel) Search(key int64) (int, error) {
	lo, hi := 0, l.used
	if l.index != nil {
		if ilo, ihi, ok := l.index.Bounds(key); ok {
			if ilo > lo {
				lo = ilo
			}
			if ihi < hi {
				hi = ihi
			}
			if lo > hi {
				lo, hi = 0, l.used // stale hint: fall back to the full range
			}
		}
	}

	var searchErr error
	pos := searchKey(hi-lo, key, func(i int) int64 {
		rec, err := l.Read(lo + i)
		if err != nil {
			searchErr = err
			return key // neutral: stops the comparison from steering further
		}
		return rec.Key
	})
	if searchErr != nil {
		return 0, searchErr
	}
	return lo + pos, nil
}

func (l *diskLevel) Membership() MembershipHook        { return l.membership }
func (l *diskLevel) SetMembership(hook MembershipHook) { l.membership = hook }
func (l *diskLevel) Index() OrderedIndexHook           { return l.index }
func (l *diskLevel) SetIndex(hook OrderedIndexHook)    { l.index = hook }

// Close closes (but does not remove) the backing file. Tree.Destroy is
// responsible for unlinking disk-level files after Close.
func (l *diskLevel) Close() error {
	return l.file.Close()
}

// path reports the backing file's path, used by Tree.Destroy to unlink it.
func (l *diskLevel) path() string {
	return l.file.Name()
}
