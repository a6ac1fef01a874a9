// Package memory provides an in-process transport mesh. Every participant
// shares one Mesh; sends append envelopes to the other participants'
// inboxes and delivery happens when each participant polls. Tests use it to
// run several session tick loops deterministically in one process.
package memory

import (
	"fmt"
	"sync"

	"gravewatch/replication/internal/proto"
	"gravewatch/replication/internal/transport"
)

const defaultInboxCapacity = 256

// Mesh connects participants in one process.
type Mesh struct {
	mu           sync.Mutex
	participants map[proto.ParticipantID]*Participant
	authorities  map[proto.EntityID]proto.ParticipantID
}

// NewMesh constructs an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{
		participants: make(map[proto.ParticipantID]*Participant),
		authorities:  make(map[proto.EntityID]proto.ParticipantID),
	}
}

// Join adds a connected participant to the mesh.
func (m *Mesh) Join(id proto.ParticipantID) *Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Participant{
		mesh:      m,
		id:        id,
		inbox:     transport.NewInbox(defaultInboxCapacity),
		channels:  make(map[proto.EntityID]*transport.Channel),
		connected: true,
	}
	m.participants[id] = p
	return p
}

// Leave removes a participant; queued messages to it are discarded.
func (m *Mesh) Leave(id proto.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.participants[id]; ok {
		p.connected = false
		delete(m.participants, id)
	}
}

// SetAuthority records the authority for an entity without a claim message,
// mirroring out-of-band role information a real lobby would distribute.
func (m *Mesh) SetAuthority(id proto.EntityID, owner proto.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorities[id] = owner
}

func (m *Mesh) authorityOf(id proto.EntityID) (proto.ParticipantID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.authorities[id]
	return owner, ok
}

func (m *Mesh) deliver(from proto.ParticipantID, to proto.ParticipantID, env proto.Envelope) error {
	m.mu.Lock()
	target, ok := m.participants[to]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: unknown participant %q", to)
	}
	target.inbox.Push(env)
	return nil
}

func (m *Mesh) broadcast(from proto.ParticipantID, env proto.Envelope) {
	m.mu.Lock()
	targets := make([]*Participant, 0, len(m.participants))
	for id, p := range m.participants {
		if id == from {
			continue
		}
		targets = append(targets, p)
	}
	m.mu.Unlock()
	for _, p := range targets {
		p.inbox.Push(env)
	}
}

// Participant is one mesh member implementing the core Transport interface.
type Participant struct {
	mesh      *Mesh
	id        proto.ParticipantID
	inbox     *transport.Inbox
	mu        sync.Mutex
	channels  map[proto.EntityID]*transport.Channel
	connected bool
}

// NewSolo returns a participant with no mesh behind it. Connected reports
// false, so every entity spawned against it resolves to solo authority.
func NewSolo(id proto.ParticipantID) *Participant {
	return &Participant{
		id:       id,
		inbox:    transport.NewInbox(defaultInboxCapacity),
		channels: make(map[proto.EntityID]*transport.Channel),
	}
}

// LocalID identifies this participant.
func (p *Participant) LocalID() proto.ParticipantID {
	return p.id
}

// Connected reports whether the participant is attached to a mesh.
func (p *Participant) Connected() bool {
	if p == nil || p.mesh == nil {
		return false
	}
	p.mesh.mu.Lock()
	defer p.mesh.mu.Unlock()
	return p.connected
}

// AuthorityOf consults the mesh roster.
func (p *Participant) AuthorityOf(id proto.EntityID) (proto.ParticipantID, bool) {
	if p == nil || p.mesh == nil {
		return "", false
	}
	return p.mesh.authorityOf(id)
}

// Claim records this participant as the entity's authority.
func (p *Participant) Claim(id proto.EntityID) error {
	if p == nil || p.mesh == nil {
		return nil
	}
	p.mesh.SetAuthority(id, p.id)
	return nil
}

// Channel returns the entity's snapshot channel, creating it on first use.
func (p *Participant) Channel(id proto.EntityID) *transport.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		ch = transport.NewChannel(id)
		p.channels[id] = ch
	}
	return ch
}

// SendSnapshot broadcasts a snapshot frame to every other participant.
func (p *Participant) SendSnapshot(id proto.EntityID, frame []byte) error {
	if p == nil || p.mesh == nil {
		return nil
	}
	env := proto.Envelope{
		Type:    proto.TypeSnapshot,
		From:    p.id,
		Entity:  id,
		Channel: proto.ChannelAddress(id),
		Frame:   frame,
	}
	p.mesh.broadcast(p.id, env)
	return nil
}

// SendCommand delivers a command request to one participant.
func (p *Participant) SendCommand(to proto.ParticipantID, id proto.EntityID, req proto.CommandRequest) error {
	if p == nil || p.mesh == nil {
		return fmt.Errorf("memory: not connected")
	}
	env := proto.Envelope{
		Type:    proto.TypeCommand,
		From:    p.id,
		To:      to,
		Entity:  id,
		Command: &req,
	}
	return p.mesh.deliver(p.id, to, env)
}

// SendDespawn broadcasts an authority-issued teardown.
func (p *Participant) SendDespawn(id proto.EntityID) error {
	if p == nil || p.mesh == nil {
		return nil
	}
	env := proto.Envelope{
		Type:   proto.TypeDespawn,
		From:   p.id,
		Entity: id,
	}
	p.mesh.broadcast(p.id, env)
	return nil
}

// Poll drains the inbox and hands each message to the handler in arrival
// order.
func (p *Participant) Poll(h transport.Handler) {
	if p == nil || h == nil {
		return
	}
	for _, env := range p.inbox.Drain() {
		switch env.Type {
		case proto.TypeSnapshot:
			h.HandleSnapshot(env.Entity, env.Frame)
		case proto.TypeCommand:
			if env.Command != nil {
				h.HandleCommand(env.Entity, *env.Command)
			}
		case proto.TypeDespawn:
			h.HandleDespawn(env.Entity)
		}
	}
}
