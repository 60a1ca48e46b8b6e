package lsmtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T, capacities []int, mainLevels int) *Tree {
	t.Helper()
	tree, err := Init(t.Name(), len(capacities), mainLevels, capacities, Options{DiskDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Destroy() })
	return tree
}

func keysOf(t *testing.T, lvl Level) []int64 {
	t.Helper()
	var out []int64
	for i := 0; i < lvl.Used(); i++ {
		rec, err := lvl.Read(i)
		require.NoError(t, err)
		out = append(out, rec.Key)
	}
	return out
}

func TestMigrateMergesTwoSortedLevels(t *testing.T) {
	tree := newTestTree(t, []int{3, 6}, 2)

	for _, k := range []int64{1, 3, 5} {
		require.NoError(t, tree.Put(k, k*10))
	}
	require.Equal(t, 3, tree.levels[0].Used())

	// Triggers a migration of level 0 into level 1 before the new key is
	// inserted (insert never migrates; it only ever targets level 0).
	require.NoError(t, tree.Put(7, 70))

	require.Equal(t, []int64{7}, keysOf(t, tree.levels[0]))
	require.ElementsMatch(t, []int64{1, 3, 5}, keysOf(t, tree.levels[1]))
}

func TestMigrateShallowWinsOnKeyCollision(t *testing.T) {
	tree := newTestTree(t, []int{2, 4}, 2)

	require.NoError(t, tree.Put(1, 100))
	require.NoError(t, tree.Put(2, 200))
	// Fill level 1 directly to simulate a prior value for key 1.
	require.NoError(t, insertInto(tree.levels[1].(*mainLevel), Record{Key: 1, Value: 999, Op: OpAdd, Valid: true}))
	tree.levels[1].setUsed(1)

	require.NoError(t, tree.migrate(0))

	val, ok, err := tree.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), val, "shallower level's value must win on collision (I3)")
}

func TestMigrateNonTerminalTombstonePropagates(t *testing.T) {
	tree := newTestTree(t, []int{2, 4, 8}, 3)

	require.NoError(t, insertInto(tree.levels[1].(*mainLevel), Record{Key: 5, Value: 50, Op: OpAdd, Valid: true}))
	tree.levels[1].setUsed(1)

	require.NoError(t, tree.Delete(5))
	require.NoError(t, tree.migrate(0))

	found := false
	for i := 0; i < tree.levels[1].Used(); i++ {
		rec, err := tree.levels[1].Read(i)
		require.NoError(t, err)
		if rec.Key == 5 {
			found = true
			require.Equal(t, OpDel, rec.Op, "tombstone must survive a non-terminal migration")
		}
	}
	require.True(t, found, "tombstone for key 5 should be present at level 1")
}

func TestMigrateTerminalLevelAnnihilatesTombstone(t *testing.T) {
	tree := newTestTree(t, []int{1, 2}, 2)

	require.NoError(t, insertInto(tree.levels[1].(*mainLevel), Record{Key: 9, Value: 90, Op: OpAdd, Valid: true}))
	tree.levels[1].setUsed(1)

	require.NoError(t, tree.Delete(9))
	require.NoError(t, tree.migrate(0))

	_, ok, err := tree.Get(9)
	require.NoError(t, err)
	require.False(t, ok, "key must be fully gone once a tombstone annihilates its ADD at the terminal level")

	for i := 0; i < tree.levels[1].Used(); i++ {
		rec, err := tree.levels[1].Read(i)
		require.NoError(t, err)
		require.NotEqual(t, int64(9), rec.Key, "annihilated key must leave no trace at the terminal level")
	}
}

func TestMigrateCascadesThroughFullLowerLevel(t *testing.T) {
	// level0 holds two keys at once; level1 can only hold one, so merging
	// level0 into level1 must itself cascade level1's old occupant into
	// level2 before the second of level0's two keys can land.
	tree := newTestTree(t, []int{2, 1, 4}, 3)

	require.NoError(t, tree.Put(1, 1))
	require.NoError(t, tree.Put(2, 2))
	require.NoError(t, tree.Put(3, 3)) // level0 full -> migrate(0) cascades through level1 into level2

	require.Equal(t, []int64{3}, keysOf(t, tree.levels[0]))
	require.Equal(t, []int64{2}, keysOf(t, tree.levels[1]))
	require.Equal(t, []int64{1}, keysOf(t, tree.levels[2]))
}

func TestMigrateTerminalOverflowIsFatal(t *testing.T) {
	tree := newTestTree(t, []int{1, 1}, 1)

	require.NoError(t, tree.Put(1, 1))
	require.NoError(t, tree.Put(2, 2)) // level1 now holds key 1, level0 holds key 2
	err := tree.Put(3, 3)              // level0 full -> migrate: level1 full and terminal -> must fail
	require.ErrorIs(t, err, ErrCapacityExhausted)

	_, _, getErr := tree.Get(1)
	require.NoError(t, getErr, "tree must remain readable after exhaustion")
}
