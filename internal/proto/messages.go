package proto

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Version tracks the wire-protocol revision expected by participants.
const Version = 1

// Message type identifiers exchanged between participants and the relay.
const (
	TypeHello     = "hello"
	TypeWelcome   = "welcome"
	TypeRoster    = "roster"
	TypeClaim     = "claim"
	TypeSnapshot  = "snapshot"
	TypeCommand   = "command"
	TypeDespawn   = "despawn"
	TypeHeartbeat = "heartbeat"
)

// CommandRequest asks the authority for an entity to apply a state-mutating
// action. It exists only in flight; the resulting truth travels back through
// the snapshot channel, never as a reply.
type CommandRequest struct {
	Amount    float32       `json:"amount"`
	Position  mgl32.Vec3    `json:"position"`
	Direction mgl32.Vec3    `json:"direction"`
	Sender    ParticipantID `json:"sender"`
}

// RosterEntry announces which participant holds authority for an entity.
type RosterEntry struct {
	Entity    EntityID      `json:"entity"`
	Authority ParticipantID `json:"authority"`
}

// Envelope is the routed wrapper for every message on the wire. Snapshot
// frames ride in Frame as opaque positional bytes; everything else is plain
// JSON fields.
type Envelope struct {
	Ver     int             `json:"ver,omitempty"`
	Type    string          `json:"type"`
	From    ParticipantID   `json:"from,omitempty"`
	To      ParticipantID   `json:"to,omitempty"`
	Entity  EntityID        `json:"entity,omitempty"`
	Channel uint64          `json:"channel,omitempty"`
	Frame   []byte          `json:"frame,omitempty"`
	Command *CommandRequest `json:"command,omitempty"`
	Roster  []RosterEntry   `json:"roster,omitempty"`
	SentAt  int64           `json:"sentAt,omitempty"`
}

// EncodeEnvelope renders an envelope for the wire.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	if env.Ver == 0 {
		env.Ver = Version
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("proto: encode %s envelope: %w", env.Type, err)
	}
	return data, nil
}

// DecodeEnvelope parses an inbound envelope and validates its type tag.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("proto: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("proto: envelope missing type")
	}
	return env, nil
}
