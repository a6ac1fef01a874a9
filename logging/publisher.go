package logging

import (
	"context"
	"time"
)

type EventType string

// Event types emitted by the replication layer.
const (
	EventEntitySpawned     EventType = "replication.entity_spawned"
	EventEntityReactivated EventType = "replication.entity_reactivated"
	EventChannelStripped   EventType = "replication.channel_stripped"
	EventSnapshotSnap      EventType = "replication.snapshot_snap"
	EventSnapshotCorrupt   EventType = "replication.snapshot_corrupt"
	EventDamageApplied     EventType = "combat.damage_applied"
	EventDamageForwarded   EventType = "combat.damage_forwarded"
	EventDamageRejected    EventType = "combat.damage_rejected"
	EventEntityDied        EventType = "lifecycle.entity_died"
	EventEntityDespawned   EventType = "lifecycle.entity_despawned"
)

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown     EntityKind = "unknown"
	EntityKindEnemy       EntityKind = "enemy"
	EntityKindParticipant EntityKind = "participant"
	EntityKindChannel     EntityKind = "channel"
	EntityKindSession     EntityKind = "session"
)

type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryReplication = "replication"
	CategoryCombat      = "combat"
	CategoryLifecycle   = "lifecycle"
	CategorySystem      = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher discards every event so components never need a nil check
// before publishing.
var NopPublisher Publisher = nopPublisher{}
