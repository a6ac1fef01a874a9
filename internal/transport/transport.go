package transport

import "gravewatch/replication/internal/proto"

// Handler receives inbound messages while a Poll pass drains the transport
// inbox. Calls happen synchronously on the polling goroutine.
type Handler interface {
	HandleSnapshot(id proto.EntityID, frame []byte)
	HandleCommand(id proto.EntityID, req proto.CommandRequest)
	HandleDespawn(id proto.EntityID)
}

// Transport is what the replication core requires from the network layer:
// session role information, a per-entity snapshot channel, a best-effort
// send primitive addressed to an entity's authority, and an inbox drained
// once per tick.
type Transport interface {
	// LocalID identifies this participant within the session.
	LocalID() proto.ParticipantID
	// Connected reports whether session role information is available.
	// A disconnected transport puts every entity in solo mode.
	Connected() bool
	// AuthorityOf reports which participant holds authority for an entity.
	AuthorityOf(id proto.EntityID) (proto.ParticipantID, bool)
	// Claim records this participant as the authority for an entity and
	// announces it to the session.
	Claim(id proto.EntityID) error
	// Channel returns the entity's snapshot channel, creating it on first
	// use.
	Channel(id proto.EntityID) *Channel
	// SendSnapshot broadcasts an encoded snapshot frame to every other
	// participant.
	SendSnapshot(id proto.EntityID, frame []byte) error
	// SendCommand delivers a command request to one participant.
	SendCommand(to proto.ParticipantID, id proto.EntityID, req proto.CommandRequest) error
	// SendDespawn broadcasts an authority-issued teardown for an entity.
	SendDespawn(id proto.EntityID) error
	// Poll synchronously hands every queued inbound message to the handler.
	Poll(h Handler)
}
