package proto

import "github.com/zeebo/xxh3"

// EntityID uniquely names one replicated entity within a session.
type EntityID string

// ParticipantID identifies one connected process in a session.
type ParticipantID string

// ChannelAddress derives the stable transport address for an entity's
// snapshot channel. Every participant computes the same address from the
// same entity ID, so no address exchange is needed at spawn time.
func ChannelAddress(id EntityID) uint64 {
	return xxh3.HashString(string(id))
}
