package memory

import "tasktracker/pkg/domain"

// DefaultHistoryCapacity bounds the recently viewed list.
const DefaultHistoryCapacity = 10

// sentinel is the arena slot of the list head; its next is the most recent
// entry and its prev the least recent.
const sentinel = 0

type recencyNode struct {
	entity     domain.Entity
	prev, next int
}

// RecencyList is a capacity-bounded most-recently-used list. Nodes live in
// an arena addressed by index; an id→slot map gives O(1) promotion and
// removal. Freed slots are recycled, so the arena never grows past
// capacity+1 entries.
type RecencyList struct {
	nodes    []recencyNode
	free     []int
	index    map[int64]int
	size     int
	capacity int
}

// NewRecencyList returns an empty list. Non-positive capacities fall back to
// DefaultHistoryCapacity.
func NewRecencyList(capacity int) *RecencyList {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &RecencyList{
		nodes:    make([]recencyNode, 1, capacity+1),
		index:    make(map[int64]int, capacity),
		capacity: capacity,
	}
}

// Touch moves e to the most recent position, inserting it when absent and
// evicting the least recent entry on overflow. A nil entity is ignored.
func (l *RecencyList) Touch(e domain.Entity) {
	if isNilEntity(e) {
		return
	}
	l.Remove(e.EntityID())
	if l.size >= l.capacity {
		l.unlink(l.nodes[sentinel].prev)
	}
	n := l.alloc(e)
	first := l.nodes[sentinel].next
	l.nodes[n].prev = sentinel
	l.nodes[n].next = first
	l.nodes[first].prev = n
	l.nodes[sentinel].next = n
	l.index[e.EntityID()] = n
	l.size++
}

// Remove drops the entry for id if present.
func (l *RecencyList) Remove(id int64) {
	if n, ok := l.index[id]; ok {
		l.unlink(n)
	}
}

// Snapshot lists the held entities from most to least recent.
func (l *RecencyList) Snapshot() []domain.Entity {
	out := make([]domain.Entity, 0, l.size)
	for n := l.nodes[sentinel].next; n != sentinel; n = l.nodes[n].next {
		out = append(out, l.nodes[n].entity)
	}
	return out
}

// IDs lists the held identifiers from most to least recent.
func (l *RecencyList) IDs() []int64 {
	out := make([]int64, 0, l.size)
	for n := l.nodes[sentinel].next; n != sentinel; n = l.nodes[n].next {
		out = append(out, l.nodes[n].entity.EntityID())
	}
	return out
}

// Len returns the number of held entries.
func (l *RecencyList) Len() int { return l.size }

// Capacity returns the configured bound.
func (l *RecencyList) Capacity() int { return l.capacity }

func (l *RecencyList) alloc(e domain.Entity) int {
	if last := len(l.free) - 1; last >= 0 {
		n := l.free[last]
		l.free = l.free[:last]
		l.nodes[n] = recencyNode{entity: e}
		return n
	}
	l.nodes = append(l.nodes, recencyNode{entity: e})
	return len(l.nodes) - 1
}

func (l *RecencyList) unlink(n int) {
	node := l.nodes[n]
	l.nodes[node.prev].next = node.next
	l.nodes[node.next].prev = node.prev
	delete(l.index, node.entity.EntityID())
	l.nodes[n] = recencyNode{}
	l.free = append(l.free, n)
	l.size--
}

func isNilEntity(e domain.Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *domain.Task:
		return v == nil
	case *domain.Epic:
		return v == nil
	case *domain.Subtask:
		return v == nil
	}
	return false
}
