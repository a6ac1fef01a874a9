package transport

import (
	"sync"

	"gravewatch/replication/internal/proto"
)

// Inbox stores queued inbound envelopes in a fixed-size ring. It is safe for
// concurrent producers (read pumps, relay callbacks) and a single consumer
// (the session's Poll pass).
type Inbox struct {
	mu      sync.Mutex
	data    []proto.Envelope
	head    int
	tail    int
	count   int
	dropped uint64
}

// NewInbox constructs a ring buffer with the provided capacity.
func NewInbox(capacity int) *Inbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Inbox{data: make([]proto.Envelope, capacity)}
}

// Push queues an envelope, returning false and counting a drop when the
// ring is full.
func (b *Inbox) Push(env proto.Envelope) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		b.dropped++
		return false
	}
	b.data[b.tail] = env
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	return true
}

// Drain returns all queued envelopes in FIFO order and clears the ring.
func (b *Inbox) Drain() []proto.Envelope {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	envelopes := make([]proto.Envelope, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		envelopes[i] = b.data[idx]
	}
	b.head = 0
	b.tail = 0
	b.count = 0
	return envelopes
}

// Len reports the number of queued envelopes.
func (b *Inbox) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped reports how many envelopes were discarded because the ring was
// full.
func (b *Inbox) Dropped() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
