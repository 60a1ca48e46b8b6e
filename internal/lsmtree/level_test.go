package lsmtree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMainLevelWriteAndSearch(t *testing.T) {
	l := newMainLevel(4)
	if l.Capacity() != 4 {
		t.Fatalf("Capacity() = %d, want 4", l.Capacity())
	}
	l.shiftRight(0)
	if err := l.Write(0, Record{Key: 5, Value: 50, Op: OpAdd}); err != nil {
		t.Fatal(err)
	}
	l.used = 1

	pos, err := l.Search(5)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 0 {
		t.Errorf("Search(5) = %d, want 0", pos)
	}

	pos, err = l.Search(9)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 1 {
		t.Errorf("Search(9) = %d, want 1 (insertion point at end)", pos)
	}
}

func TestMainLevelShiftRightPreservesOrder(t *testing.T) {
	l := newMainLevel(5)
	for i, key := range []int64{1, 3, 5} {
		l.records[i] = Record{Key: key, Value: key, Op: OpAdd, Valid: true}
	}
	l.used = 3

	// Insert 4 at position 2 (between 3 and 5).
	l.shiftRight(2)
	l.records[2] = Record{Key: 4, Value: 4, Op: OpAdd, Valid: true}
	l.used = 4

	want := []int64{1, 3, 4, 5}
	for i, k := range want {
		if l.records[i].Key != k {
			t.Errorf("records[%d].Key = %d, want %d", i, l.records[i].Key, k)
		}
	}
}

func TestMainLevelShiftLeftClosesGap(t *testing.T) {
	l := newMainLevel(5)
	for i, key := range []int64{1, 3, 4, 5} {
		l.records[i] = Record{Key: key, Value: key, Op: OpAdd, Valid: true}
	}
	l.used = 4

	l.shiftLeft(1) // remove key 3
	l.used = 3

	want := []int64{1, 4, 5}
	for i, k := range want {
		if l.records[i].Key != k {
			t.Errorf("records[%d].Key = %d, want %d", i, l.records[i].Key, k)
		}
	}
	if l.records[3] != invalidRecord {
		t.Errorf("trailing slot should be INVAL after shiftLeft, got %+v", l.records[3])
	}
}

func TestDiskLevelPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.bin")

	dl, err := newDiskLevel(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := dl.Write(0, Record{Key: 10, Value: 100, Op: OpAdd}); err != nil {
		t.Fatal(err)
	}
	dl.setUsed(1)
	if err := dl.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := newDiskLevel(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if reopened.Used() != 1 {
		t.Errorf("Used() after reopen = %d, want 1", reopened.Used())
	}
	rec, err := reopened.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Key != 10 || rec.Value != 100 {
		t.Errorf("Read(0) after reopen = %+v, want key=10 value=100", rec)
	}
}

func TestDiskLevelTruncatesWrongSizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.bin")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl, err := newDiskLevel(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Close()

	if dl.Used() != 0 {
		t.Errorf("Used() on resized file = %d, want 0", dl.Used())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(3*recordSize) {
		t.Errorf("file size = %d, want %d", info.Size(), 3*recordSize)
	}
}

func TestSearchKeyInsertionPoints(t *testing.T) {
	keys := []int64{2, 4, 6, 8}
	at := func(i int) int64 { return keys[i] }

	cases := map[int64]int{
		1: 0,
		2: 0,
		3: 1,
		8: 3,
		9: 4,
	}
	for key, want := range cases {
		if got := searchKey(len(keys), key, at); got != want {
			t.Errorf("searchKey(%d) = %d, want %d", key, got, want)
		}
	}
}
