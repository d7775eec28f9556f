package memory

// IDGenerator issues identifiers shared by tasks, epics and subtasks.
type IDGenerator interface {
	// NextID returns a fresh identifier, strictly greater than every
	// identifier previously issued or observed.
	NextID() int64
	// Observe records an identifier issued elsewhere (e.g. restored from
	// disk) so it is never handed out again.
	Observe(id int64)
}

// SequentialIDGenerator counts up from 1.
type SequentialIDGenerator struct {
	next int64
}

// NewSequentialIDGenerator returns a generator whose first identifier is 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{next: 1}
}

// NextID implements IDGenerator.
func (g *SequentialIDGenerator) NextID() int64 {
	id := g.next
	g.next++
	return id
}

// Observe implements IDGenerator.
func (g *SequentialIDGenerator) Observe(id int64) {
	if id >= g.next {
		g.next = id + 1
	}
}
