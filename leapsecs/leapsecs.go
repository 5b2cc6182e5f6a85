// Package leapsecs answers how many leap seconds (TAI-UTC) are in effect
// at a given POSIX timestamp.
//
// A Table is a step function over an ordered list of transitions: the
// count of entry i holds on [epoch(i), epoch(i+1)) and the last count holds
// forever after. Queries before the first transition return the first
// count. A Table never changes once built and is safe for concurrent use.
package leapsecs

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// ErrMalformedTable is returned when the transition list cannot form a table
var ErrMalformedTable = errors.New("malformed leap second table")

// IERSFirstEpoch is 1972-01-01T00:00:00Z, the first TAI-UTC step of the
// leap second system
const IERSFirstEpoch = int64(63072000)

// IERSFirstCount is TAI-UTC at IERSFirstEpoch
const IERSFirstCount = 10

// Entry is a single transition: Count becomes valid at Epoch (POSIX seconds)
type Entry struct {
	Epoch int64
	Count int
}

// Table stores the transitions of the leap second step function
type Table struct {
	epochs []int64
	counts []int
}

// New builds a Table from entries sorted by strictly increasing Epoch.
// The slice is copied.
func New(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrMalformedTable)
	}

	epochs := make([]int64, 0, len(entries))
	counts := make([]int, 0, len(entries))
	for i, e := range entries {
		if i > 0 && e.Epoch <= entries[i-1].Epoch {
			return nil, fmt.Errorf("%w: epoch %d at index %d does not follow %d",
				ErrMalformedTable, e.Epoch, i, entries[i-1].Epoch)
		}
		epochs = append(epochs, e.Epoch)
		counts = append(counts, e.Count)
	}
	if len(epochs) != len(counts) {
		return nil, fmt.Errorf("%w: %d epochs for %d counts",
			ErrMalformedTable, len(epochs), len(counts))
	}

	return &Table{epochs: epochs, counts: counts}, nil
}

// MustNew is like New but panics on malformed input
func MustNew(entries []Entry) *Table {
	t, err := New(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// ValidateIERS checks that the table starts at the 1972-01-01 introduction
// of leap seconds with a count of 10, as every table derived from the
// IERS/NIST list must.
func ValidateIERS(t *Table) error {
	first := t.First()
	if first.Epoch != IERSFirstEpoch || first.Count != IERSFirstCount {
		return fmt.Errorf("%w: first entry is (%d, %d), want (%d, %d)",
			ErrMalformedTable, first.Epoch, first.Count, IERSFirstEpoch, IERSFirstCount)
	}
	return nil
}

// Count returns the leap second count in effect at epoch seconds since
// 1970-01-01 UTC. Fractional seconds are truncated toward zero. NaN is
// treated as lying before the first transition.
func (t *Table) Count(epoch float64) int {
	switch {
	case math.IsNaN(epoch):
		return t.counts[0]
	case epoch >= math.MaxInt64:
		return t.counts[len(t.counts)-1]
	case epoch <= math.MinInt64:
		return t.counts[0]
	}
	return t.CountUnix(int64(epoch))
}

// CountUnix returns the leap second count in effect at sec
func (t *Table) CountUnix(sec int64) int {
	last := len(t.epochs) - 1
	// present day queries are by far the most common
	if sec >= t.epochs[last] {
		return t.counts[last]
	}
	if sec <= t.epochs[0] {
		return t.counts[0]
	}

	i, found := slices.BinarySearch(t.epochs, sec)
	if !found {
		i--
	}
	return t.counts[i]
}

// CountAt returns the leap second count in effect at tm
func (t *Table) CountAt(tm time.Time) int {
	return t.CountUnix(tm.Unix())
}

// Inserted returns the number of leap seconds inserted since the first
// transition, i.e. Count minus the first count.
func (t *Table) Inserted(epoch float64) int {
	return t.Count(epoch) - t.counts[0]
}

// Len returns the number of transitions
func (t *Table) Len() int {
	return len(t.epochs)
}

// First returns the earliest transition
func (t *Table) First() Entry {
	return Entry{Epoch: t.epochs[0], Count: t.counts[0]}
}

// Last returns the latest transition
func (t *Table) Last() Entry {
	last := len(t.epochs) - 1
	return Entry{Epoch: t.epochs[last], Count: t.counts[last]}
}

// Entries returns a copy of the transitions in ascending order
func (t *Table) Entries() []Entry {
	result := make([]Entry, len(t.epochs))
	for i := range t.epochs {
		result[i] = Entry{Epoch: t.epochs[i], Count: t.counts[i]}
	}
	return result
}
