package foreman

import (
	"sync"
)

// ReaderID identifies one cursor trailing a Channel.
type ReaderID uint64

// Channel is an ordered event log read through independent cursors. Events
// are kept only until every registered reader has passed them, and events
// written while nobody is registered are discarded.
//
// By default the backlog is unbounded and a warning is logged once it
// crosses Config's warn threshold. With a positive limit the oldest events
// are dropped instead and the readers that missed them get a
// ReaderLaggedError on their next Read.
type Channel[E any] struct {
	mu      sync.Mutex
	events  []E
	base    uint64 // absolute offset of events[0]
	readers map[ReaderID]*cursor
	next    ReaderID
	limit   int
	warnAt  int
	warned  bool
}

type cursor struct {
	offset uint64
	missed uint64
}

func newChannel[E any]() *Channel[E] {
	limit, warnAt := Config.ChannelPolicy()
	return &Channel[E]{limit: limit, warnAt: warnAt}
}

// SetLimit bounds the backlog. Zero means unbounded.
func (c *Channel[E]) SetLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	c.enforceLimit()
}

// Register adds a reader positioned at the current end of the log.
func (c *Channel[E]) Register() ReaderID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readers == nil {
		c.readers = make(map[ReaderID]*cursor)
	}
	c.next++
	id := c.next
	c.readers[id] = &cursor{offset: c.base + uint64(len(c.events))}
	return id
}

// Unregister drops a reader so it no longer holds events back.
func (c *Channel[E]) Unregister(id ReaderID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.readers, id)
	c.trim()
}

// Write appends events.
func (c *Channel[E]) Write(events ...E) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readers) == 0 {
		c.base += uint64(len(c.events) + len(events))
		c.events = c.events[:0]
		return
	}
	c.events = append(c.events, events...)
	c.enforceLimit()
	if c.warnAt > 0 && !c.warned && len(c.events) >= c.warnAt {
		c.warned = true
		Config.Logger().Warn("change log backlog is growing",
			"events", len(c.events), "readers", len(c.readers))
	}
}

// Read returns every event written since the reader's last Read and
// advances it. The returned slice is owned by the caller.
func (c *Channel[E]) Read(id ReaderID) ([]E, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.readers[id]
	if !ok {
		return nil, UnknownReaderError{Reader: id}
	}
	start := int(cur.offset - c.base)
	out := make([]E, len(c.events)-start)
	copy(out, c.events[start:])
	cur.offset = c.base + uint64(len(c.events))

	var err error
	if cur.missed > 0 {
		err = ReaderLaggedError{Reader: id, Missed: cur.missed}
		cur.missed = 0
	}
	c.trim()
	return out, err
}

// Len returns the number of buffered events.
func (c *Channel[E]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// trim drops events every reader has consumed.
func (c *Channel[E]) trim() {
	if len(c.readers) == 0 {
		c.base += uint64(len(c.events))
		c.events = c.events[:0]
		c.warned = false
		return
	}
	slowest := c.base + uint64(len(c.events))
	for _, cur := range c.readers {
		slowest = min(slowest, cur.offset)
	}
	c.drop(int(slowest - c.base))
	if c.warnAt > 0 && len(c.events) < c.warnAt/2 {
		c.warned = false
	}
}

// enforceLimit resyncs readers that would lose events to the limit.
func (c *Channel[E]) enforceLimit() {
	if c.limit <= 0 || len(c.events) <= c.limit {
		return
	}
	excess := len(c.events) - c.limit
	floor := c.base + uint64(excess)
	for _, cur := range c.readers {
		if cur.offset < floor {
			cur.missed += floor - cur.offset
			cur.offset = floor
		}
	}
	c.drop(excess)
}

func (c *Channel[E]) drop(n int) {
	if n <= 0 {
		return
	}
	kept := copy(c.events, c.events[n:])
	var zero E
	for i := kept; i < len(c.events); i++ {
		c.events[i] = zero
	}
	c.events = c.events[:kept]
	c.base += uint64(n)
}
