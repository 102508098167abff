package history

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrPreviouslyFailed is returned when content already reverted or rejected is recorded as applied.
	ErrPreviouslyFailed = errors.New("content previously reverted or rejected")
	// ErrAlreadyRecorded is returned when content is already present in some partition.
	ErrAlreadyRecorded = errors.New("content already recorded")
	// ErrNotApplied is returned when reverting an entry that is not in the applied partition.
	ErrNotApplied = errors.New("entry not applied")
)

// #region partition
// Partition names one of the three disjoint history partitions.
type Partition string

const (
	PartitionApplied  Partition = "applied"
	PartitionReverted Partition = "reverted"
	PartitionRejected Partition = "rejected"
)

// #endregion partition

// #region entry
// Entry is one patch as tracked by the history.
type Entry struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Iteration   int       `json:"iteration"`
	Target      string    `json:"target"`
	Description string    `json:"description"`
	Hypothesis  string    `json:"hypothesis"`
	ContentHash string    `json:"content_hash"`
	AppliedRef  string    `json:"applied_ref,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Partition   Partition `json:"partition"`
}

// ContentHash identifies proposal content independent of its wording.
func ContentHash(target, change string) string {
	sum := sha256.Sum256([]byte(target + "\x00" + change))
	return hex.EncodeToString(sum[:])
}

// #endregion entry

// #region history
// History is the append-only, three-way partitioned record of every patch
// seen during a run. It is not safe for concurrent use.
type History struct {
	applied  []Entry
	reverted []Entry
	rejected []Entry
	byHash   map[string]Partition
	newID    func() string
}

// New creates an empty history that assigns random entry IDs.
func New() *History {
	return NewWithIDs(uuid.NewString)
}

// NewWithIDs creates an empty history using gen for entry IDs.
func NewWithIDs(gen func() string) *History {
	return &History{
		byHash: map[string]Partition{},
		newID:  gen,
	}
}

// RecordApplied adds e to the applied partition.
func (h *History) RecordApplied(e Entry) (Entry, error) {
	if p, ok := h.byHash[e.ContentHash]; ok {
		if p == PartitionApplied {
			return Entry{}, fmt.Errorf("record applied: %w", ErrAlreadyRecorded)
		}
		return Entry{}, fmt.Errorf("record applied (%s): %w", p, ErrPreviouslyFailed)
	}
	e = h.stamp(e, PartitionApplied)
	h.applied = append(h.applied, e)
	return e, nil
}

// RecordRejected adds e to the rejected partition with reason.
func (h *History) RecordRejected(e Entry, reason string) (Entry, error) {
	if p, ok := h.byHash[e.ContentHash]; ok {
		return Entry{}, fmt.Errorf("record rejected (%s): %w", p, ErrAlreadyRecorded)
	}
	e.Reason = reason
	e = h.stamp(e, PartitionRejected)
	h.rejected = append(h.rejected, e)
	return e, nil
}

// Revert moves an applied entry to the reverted partition.
func (h *History) Revert(id, reason string) (Entry, error) {
	for i, e := range h.applied {
		if e.ID != id {
			continue
		}
		h.applied = append(h.applied[:i:i], h.applied[i+1:]...)
		e.Reason = reason
		e.Partition = PartitionReverted
		h.reverted = append(h.reverted, e)
		h.byHash[e.ContentHash] = PartitionReverted
		return e, nil
	}
	return Entry{}, fmt.Errorf("revert %s: %w", id, ErrNotApplied)
}

// Seed preloads entries persisted by earlier runs. Entries whose content is
// already known are skipped.
func (h *History) Seed(entries []Entry) {
	for _, e := range entries {
		if _, ok := h.byHash[e.ContentHash]; ok || e.ContentHash == "" {
			continue
		}
		if e.ID == "" {
			e.ID = h.newID()
		}
		h.byHash[e.ContentHash] = e.Partition
		switch e.Partition {
		case PartitionApplied:
			h.applied = append(h.applied, e)
		case PartitionReverted:
			h.reverted = append(h.reverted, e)
		default:
			e.Partition = PartitionRejected
			h.byHash[e.ContentHash] = PartitionRejected
			h.rejected = append(h.rejected, e)
		}
	}
}

func (h *History) stamp(e Entry, p Partition) Entry {
	if e.ID == "" {
		e.ID = h.newID()
	}
	e.Partition = p
	h.byHash[e.ContentHash] = p
	return e
}

// #endregion history

// #region queries
// Lookup reports which partition holds the given content, if any.
func (h *History) Lookup(hash string) (Entry, bool) {
	p, ok := h.byHash[hash]
	if !ok {
		return Entry{}, false
	}
	for _, e := range h.partition(p) {
		if e.ContentHash == hash {
			return e, true
		}
	}
	return Entry{}, false
}

// Applied returns a copy of the applied partition.
func (h *History) Applied() []Entry { return cloneEntries(h.applied) }

// Reverted returns a copy of the reverted partition.
func (h *History) Reverted() []Entry { return cloneEntries(h.reverted) }

// Rejected returns a copy of the rejected partition.
func (h *History) Rejected() []Entry { return cloneEntries(h.rejected) }

// Counts returns the size of each partition.
func (h *History) Counts() (applied, reverted, rejected int) {
	return len(h.applied), len(h.reverted), len(h.rejected)
}

// Len returns the total number of entries.
func (h *History) Len() int {
	return len(h.applied) + len(h.reverted) + len(h.rejected)
}

func (h *History) partition(p Partition) []Entry {
	switch p {
	case PartitionApplied:
		return h.applied
	case PartitionReverted:
		return h.reverted
	default:
		return h.rejected
	}
}

func cloneEntries(in []Entry) []Entry {
	if len(in) == 0 {
		return nil
	}
	out := make([]Entry, len(in))
	copy(out, in)
	return out
}

// #endregion queries
