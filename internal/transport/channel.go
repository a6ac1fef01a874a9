package transport

import (
	"sync"

	"gravewatch/replication/internal/proto"
)

// WriterFunc serializes one component's fields into the outgoing frame.
type WriterFunc func(w *proto.StreamWriter)

// ReaderFunc consumes one component's fields from an inbound frame.
type ReaderFunc func(r *proto.StreamReader)

type writerRegistration struct {
	owner string
	fn    WriterFunc
}

type readerRegistration struct {
	owner string
	fn    ReaderFunc
}

// Channel is the per-entity serialization stream. Registered writers are
// invoked in order to build each outgoing frame, and registered readers are
// invoked in order to consume each inbound frame. The protocol has no field
// tags, so a frame only decodes correctly when exactly one writer feeds
// exactly one reader; Strip exists so the owning component can enforce that.
type Channel struct {
	mu      sync.Mutex
	entity  proto.EntityID
	address uint64
	writers []writerRegistration
	readers []readerRegistration
}

// NewChannel constructs the channel for an entity.
func NewChannel(entity proto.EntityID) *Channel {
	return &Channel{
		entity:  entity,
		address: proto.ChannelAddress(entity),
	}
}

// Entity returns the entity this channel replicates.
func (c *Channel) Entity() proto.EntityID {
	if c == nil {
		return ""
	}
	return c.entity
}

// Address returns the stable transport address for this channel.
func (c *Channel) Address() uint64 {
	if c == nil {
		return 0
	}
	return c.address
}

// RegisterWriter adds a serialization callback under the given owner tag.
// Re-registering an owner replaces its previous callback in place.
func (c *Channel) RegisterWriter(owner string, fn WriterFunc) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.writers {
		if c.writers[i].owner == owner {
			c.writers[i].fn = fn
			return
		}
	}
	c.writers = append(c.writers, writerRegistration{owner: owner, fn: fn})
}

// RegisterReader adds a deserialization callback under the given owner tag.
func (c *Channel) RegisterReader(owner string, fn ReaderFunc) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.readers {
		if c.readers[i].owner == owner {
			c.readers[i].fn = fn
			return
		}
	}
	c.readers = append(c.readers, readerRegistration{owner: owner, fn: fn})
}

// Strip removes every registration whose owner differs from keep and reports
// how many were removed. The surviving registrations retain their order.
func (c *Channel) Strip(keep string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	writers := c.writers[:0]
	for _, reg := range c.writers {
		if reg.owner == keep {
			writers = append(writers, reg)
		} else {
			removed++
		}
	}
	c.writers = writers
	readers := c.readers[:0]
	for _, reg := range c.readers {
		if reg.owner == keep {
			readers = append(readers, reg)
		} else {
			removed++
		}
	}
	c.readers = readers
	return removed
}

// WriterCount reports the number of registered writers.
func (c *Channel) WriterCount() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writers)
}

// ReaderCount reports the number of registered readers.
func (c *Channel) ReaderCount() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readers)
}

// WriteFrame runs every registered writer in order and returns the encoded
// frame, or nil when no writer is registered.
func (c *Channel) WriteFrame() []byte {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	writers := append([]writerRegistration(nil), c.writers...)
	c.mu.Unlock()
	if len(writers) == 0 {
		return nil
	}
	w := proto.NewStreamWriter()
	for _, reg := range writers {
		reg.fn(w)
	}
	return w.Bytes()
}

// ReadFrame runs every registered reader in order over the frame. The only
// detectable failure is running past the end of the frame; that error is
// returned after all readers have run.
func (c *Channel) ReadFrame(frame []byte) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	readers := append([]readerRegistration(nil), c.readers...)
	c.mu.Unlock()
	if len(readers) == 0 {
		return nil
	}
	r := proto.NewStreamReader(frame)
	for _, reg := range readers {
		reg.fn(r)
	}
	return r.Err()
}
