package memory

import (
	"cmp"
	"slices"
	"time"

	"tasktracker/pkg/domain"
)

type scheduleEntry struct {
	start time.Time
	end   time.Time
	id    int64
}

func entryOf(item domain.Schedulable) scheduleEntry {
	return scheduleEntry{start: item.Start(), end: item.End(), id: item.EntityID()}
}

func compareEntries(a, b scheduleEntry) int {
	if c := a.start.Compare(b.start); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// timeIndex keeps schedulable items sorted by start time, ties broken by id.
type timeIndex struct {
	entries []scheduleEntry
}

func (x *timeIndex) insert(e scheduleEntry) {
	i, _ := slices.BinarySearchFunc(x.entries, e, compareEntries)
	x.entries = slices.Insert(x.entries, i, e)
}

func (x *timeIndex) remove(e scheduleEntry) bool {
	i, found := slices.BinarySearchFunc(x.entries, e, compareEntries)
	if !found {
		return false
	}
	x.entries = slices.Delete(x.entries, i, i+1)
	return true
}

// conflict returns the id of the first indexed item whose interval
// intersects [start, end).
func (x *timeIndex) conflict(start, end time.Time) (int64, bool) {
	for _, e := range x.entries {
		if !e.start.Before(end) {
			// sorted by start: nothing further can begin before end
			break
		}
		if start.Before(e.end) {
			return e.id, true
		}
	}
	return 0, false
}

func (x *timeIndex) ids() []int64 {
	out := make([]int64, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.id
	}
	return out
}

func (x *timeIndex) reset() { x.entries = nil }
