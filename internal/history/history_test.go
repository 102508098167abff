package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

func entry(target, change string) Entry {
	return Entry{Target: target, Description: "d", ContentHash: ContentHash(target, change)}
}

func TestContentHashSeparatesTargetAndChange(t *testing.T) {
	assert.Equal(t, ContentHash("a", "b"), ContentHash("a", "b"))
	assert.NotEqual(t, ContentHash("ab", ""), ContentHash("a", "b"))
	assert.Len(t, ContentHash("a", "b"), 64)
}

func TestRecordAppliedThenRevert(t *testing.T) {
	h := NewWithIDs(seqIDs())

	e, err := h.RecordApplied(entry("retrieval.go", "+x"))
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, PartitionApplied, e.Partition)

	r, err := h.Revert(e.ID, "source_attribution regressed 8.0pp")
	require.NoError(t, err)
	assert.Equal(t, PartitionReverted, r.Partition)
	assert.Equal(t, "source_attribution regressed 8.0pp", r.Reason)

	applied, reverted, rejected := h.Counts()
	assert.Equal(t, [3]int{0, 1, 0}, [3]int{applied, reverted, rejected})
	assert.Equal(t, 1, h.Len())

	_, err = h.Revert(e.ID, "again")
	require.ErrorIs(t, err, ErrNotApplied)
}

func TestRevertedContentNeverReentersApplied(t *testing.T) {
	h := New()
	e, err := h.RecordApplied(entry("t", "c"))
	require.NoError(t, err)
	_, err = h.Revert(e.ID, "regressed")
	require.NoError(t, err)

	_, err = h.RecordApplied(entry("t", "c"))
	require.ErrorIs(t, err, ErrPreviouslyFailed)

	// A brand-new proposal for the same target is fine.
	_, err = h.RecordApplied(entry("t", "c2"))
	require.NoError(t, err)
}

func TestRejectedContentCannotBeApplied(t *testing.T) {
	h := New()
	_, err := h.RecordRejected(entry("t", "c"), "challenge inadequate")
	require.NoError(t, err)

	_, err = h.RecordApplied(entry("t", "c"))
	require.ErrorIs(t, err, ErrPreviouslyFailed)

	_, err = h.RecordRejected(entry("t", "c"), "again")
	require.ErrorIs(t, err, ErrAlreadyRecorded)

	got, ok := h.Lookup(ContentHash("t", "c"))
	require.True(t, ok)
	assert.Equal(t, PartitionRejected, got.Partition)
	assert.Equal(t, "challenge inadequate", got.Reason)
}

func TestDuplicateApplied(t *testing.T) {
	h := New()
	_, err := h.RecordApplied(entry("t", "c"))
	require.NoError(t, err)

	_, err = h.RecordApplied(entry("t", "c"))
	require.ErrorIs(t, err, ErrAlreadyRecorded)
}

func TestPartitionsAreDisjointAndGrow(t *testing.T) {
	h := New()
	sizes := []int{}
	ops := []func(){
		func() { _, _ = h.RecordApplied(entry("a", "1")) },
		func() { _, _ = h.RecordRejected(entry("b", "1"), "vote rejected") },
		func() { _, _ = h.Revert(h.Applied()[0].ID, "regressed") },
		func() { _, _ = h.RecordApplied(entry("a", "1")) },
		func() { _, _ = h.RecordRejected(entry("a", "1"), "dup") },
		func() { _, _ = h.RecordApplied(entry("c", "1")) },
	}
	for _, op := range ops {
		op()
		sizes = append(sizes, h.Len())
	}

	assert.Equal(t, []int{1, 2, 2, 2, 2, 3}, sizes)

	seen := map[string]int{}
	for _, part := range [][]Entry{h.Applied(), h.Reverted(), h.Rejected()} {
		for _, e := range part {
			seen[e.ContentHash]++
		}
	}
	for hash, n := range seen {
		assert.Equal(t, 1, n, "hash %s in %d partitions", hash, n)
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	h := New()
	_, err := h.RecordRejected(entry("t", "c"), "r")
	require.NoError(t, err)

	rej := h.Rejected()
	rej[0].Reason = "mutated"

	assert.Equal(t, "r", h.Rejected()[0].Reason)
	assert.Nil(t, h.Applied())
}

func TestSeedSkipsKnownContent(t *testing.T) {
	h := NewWithIDs(seqIDs())
	_, err := h.RecordApplied(entry("a", "1"))
	require.NoError(t, err)

	h.Seed([]Entry{
		{ID: "old1", ContentHash: ContentHash("a", "1"), Partition: PartitionReverted},
		{ID: "old2", ContentHash: ContentHash("b", "1"), Partition: PartitionReverted, Reason: "regressed"},
		{ContentHash: ContentHash("c", "1")},
		{ID: "blank"},
	})

	applied, reverted, rejected := h.Counts()
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, reverted)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, "e2", h.Rejected()[0].ID)

	_, err = h.RecordApplied(entry("b", "1"))
	require.ErrorIs(t, err, ErrPreviouslyFailed)
}
