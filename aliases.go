package replication

import (
	"gravewatch/replication/internal/proto"
	"gravewatch/replication/internal/transport"
)

type (
	EntityID       = proto.EntityID
	ParticipantID  = proto.ParticipantID
	CommandRequest = proto.CommandRequest

	Transport        = transport.Transport
	TransportHandler = transport.Handler
	Channel          = transport.Channel
)
