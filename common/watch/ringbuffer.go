package watch

import (
	"sync"
)

// EventRingBuffer is a fixed-size buffer of events. Pushing past the capacity
// overwrites the oldest event so producers never block on slow consumers.
type EventRingBuffer struct {
	buffer []*Event
	start  int
	end    int
	mutex  sync.RWMutex
}

// NewEventRingBuffer returns a ring buffer that holds up to size events. The
// backing slice has size+1 slots because one slot is sacrificed to tell a full
// buffer apart from an empty one.
func NewEventRingBuffer(size int) *EventRingBuffer {
	return &EventRingBuffer{
		buffer: make([]*Event, size+1),
		start:  0,
		end:    0,
	}
}

// Push adds an event. If the buffer is full the oldest event is dropped.
func (b *EventRingBuffer) Push(event *Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.buffer[b.end] = event
	b.end = (b.end + 1) % len(b.buffer)

	// Wrapped around onto the oldest event, advance start past it:
	if b.end == b.start {
		b.start = (b.start + 1) % len(b.buffer)
	}
}

// Pop removes and returns the oldest event, or nil when the buffer is empty.
func (b *EventRingBuffer) Pop() (event *Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.start == b.end {
		return nil
	}

	event = b.buffer[b.start]
	// Drop the reference so the GC can reclaim the event:
	b.buffer[b.start] = nil
	b.start = (b.start + 1) % len(b.buffer)

	return event
}

// Peek returns the oldest event without removing it, or nil when empty.
func (b *EventRingBuffer) Peek() (event *Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.start == b.end {
		return nil
	}
	return b.buffer[b.start]
}

// RemoveUntil discards all events with a sequence ID up to and including id.
func (b *EventRingBuffer) RemoveUntil(id uint64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for b.start != b.end {
		if b.buffer[b.start].SeqID > id {
			return
		}
		b.buffer[b.start] = nil
		b.start = (b.start + 1) % len(b.buffer)
	}
}

// IsEmpty returns whether the buffer currently holds no events.
func (b *EventRingBuffer) IsEmpty() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.start == b.end
}
