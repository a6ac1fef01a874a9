package replication

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chewxy/math32"
	"github.com/elliotchance/orderedmap/v2"

	"gravewatch/replication/internal/schedule"
	"gravewatch/replication/internal/telemetry"
	"gravewatch/replication/logging"
)

// Deps carries the injected observability surface for a session.
type Deps struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

// Session is one participant's view of the replicated entity set. It owns
// the tick loop: every entity advances through the same fixed phase order
// each tick (guard-pre, integration, authority simulation, reconciliation,
// guard-post), inbound messages are handled synchronously between ticks,
// and snapshots flush on the network cadence.
//
// A session is single-threaded by design. Each piece of mutable state has
// one designated writer, so the tick loop takes no locks; callers must
// drive Tick and all entity methods from one goroutine.
type Session struct {
	cfg       Config
	transport Transport
	entities  *orderedmap.OrderedMap[EntityID, *Entity]
	scheduler *schedule.Scheduler
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	hooks     TickHooks
	tick      uint64
	now       time.Time
	dt        float32
}

// NewSession wires a session over the provided transport.
func NewSession(t Transport, cfg Config, deps Deps, hooks TickHooks) (*Session, error) {
	if t == nil {
		return nil, fmt.Errorf("replication: transport is required")
	}
	normalized := cfg.normalized()

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}

	return &Session{
		cfg:       normalized,
		transport: t,
		entities:  orderedmap.NewOrderedMap[EntityID, *Entity](),
		scheduler: schedule.New(),
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		hooks:     hooks,
		dt:        1 / float32(normalized.TickRate),
	}, nil
}

// Config returns the normalized tuning the session runs with.
func (s *Session) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.cfg
}

// Transport returns the transport the session was wired over.
func (s *Session) Transport() Transport {
	if s == nil {
		return nil
	}
	return s.transport
}

// CurrentTick reports the last completed tick.
func (s *Session) CurrentTick() uint64 {
	if s == nil {
		return 0
	}
	return s.tick
}

// Spawn constructs an entity with its role resolved from the current
// session state. The role must be settled before any local subsystem hook
// runs, which is why resolution happens first inside construction.
func (s *Session) Spawn(cfg EntityConfig) (*Entity, error) {
	if s == nil {
		return nil, fmt.Errorf("replication: session is nil")
	}
	if existing, ok := s.entities.Get(cfg.ID); ok && existing.Active() {
		return nil, fmt.Errorf("replication: entity %q already active", cfg.ID)
	}
	e, err := newEntity(s, cfg)
	if err != nil {
		return nil, err
	}
	s.entities.Set(cfg.ID, e)
	s.metrics.Store(metricEntitiesActive, uint64(s.activeCount()))
	s.publish(logging.Event{
		Type:     logging.EventEntitySpawned,
		Tick:     s.tick,
		Actor:    logging.EntityRef{ID: string(cfg.ID), Kind: logging.EntityKindEnemy},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryReplication,
		Extra:    map[string]any{"role": e.Role().String()},
	})
	return e, nil
}

// SpawnOwned claims authority for the entity before spawning it. This is
// the path the spawn director takes on the participant that will simulate
// the entity.
func (s *Session) SpawnOwned(cfg EntityConfig) (*Entity, error) {
	if s == nil {
		return nil, fmt.Errorf("replication: session is nil")
	}
	if err := s.transport.Claim(cfg.ID); err != nil {
		return nil, fmt.Errorf("replication: claim authority for %q: %w", cfg.ID, err)
	}
	return s.Spawn(cfg)
}

// Entity looks up a spawned entity by ID.
func (s *Session) Entity(id EntityID) (*Entity, bool) {
	if s == nil {
		return nil, false
	}
	return s.entities.Get(id)
}

// Len reports the number of tracked entities, active or pooled.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return s.entities.Len()
}

// Tick advances the session one simulation step.
func (s *Session) Tick(now time.Time) {
	if s == nil {
		return
	}
	s.now = now

	// Message delivery is asynchronous but handling is not: everything that
	// arrived since the previous tick lands here, before this tick's phases.
	s.transport.Poll(s)

	s.tick++
	s.scheduler.Advance(s.tick)
	dt := s.dt

	for el := s.entities.Front(); el != nil; el = el.Next() {
		el.Value.enforce() // guard-pre, ahead of any integration
	}

	if s.hooks.Integrate != nil {
		s.hooks.Integrate(s.tick, dt)
	}

	for el := s.entities.Front(); el != nil; el = el.Next() {
		s.stepAuthority(el.Value, dt)
	}

	for el := s.entities.Front(); el != nil; el = el.Next() {
		el.Value.reconcile(dt)
	}

	for el := s.entities.Front(); el != nil; el = el.Next() {
		el.Value.enforce() // guard-post, after every mutation callback
	}

	if s.tick%uint64(s.cfg.SendEvery) == 0 {
		s.flushSnapshots()
	}

	if s.hooks.PostTick != nil {
		s.hooks.PostTick(s.tick)
	}
}

// stepAuthority runs the behavior hook against the ground truth. Dead
// entities stop simulating; they only await teardown.
func (s *Session) stepAuthority(e *Entity, dt float32) {
	if e == nil || !e.active || e.role != RoleAuthority || e.truth.Dead {
		return
	}
	if e.behavior == nil {
		return
	}
	e.behavior.Step(s.tick, dt, &e.truth)
	// Behavior treats health as read-only; clamp drift from misbehaving
	// controllers without granting them the death transition.
	if math32.IsNaN(e.truth.Health) || e.truth.Health > e.maxHealth {
		e.truth.Health = e.maxHealth
	}
}

// flushSnapshots serializes every locally-owned entity once per network
// tick. Dead entities keep publishing until despawn so replicas observe
// the death flag.
func (s *Session) flushSnapshots() {
	for el := s.entities.Front(); el != nil; el = el.Next() {
		e := el.Value
		if !e.active || e.role != RoleAuthority {
			continue
		}
		ch := s.transport.Channel(e.id)
		frame := ch.WriteFrame()
		if len(frame) == 0 {
			continue
		}
		if err := s.transport.SendSnapshot(e.id, frame); err != nil {
			s.logger.Printf("snapshot send failed for %s: %v", e.id, err)
			continue
		}
		s.metrics.Add(metricSnapshotsSent, 1)
	}
}

// despawn is the authority's network-wide teardown.
func (s *Session) despawn(e *Entity) {
	if s == nil || e == nil || !e.active {
		return
	}
	if err := s.transport.SendDespawn(e.id); err != nil {
		s.logger.Printf("despawn send failed for %s: %v", e.id, err)
	}
	e.deactivate()
	s.metrics.Add(metricDespawnsIssued, 1)
	s.metrics.Store(metricEntitiesActive, uint64(s.activeCount()))
	s.publish(logging.Event{
		Type:     logging.EventEntityDespawned,
		Tick:     s.tick,
		Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
}

// HandleSnapshot feeds an inbound frame through the entity's channel
// readers. A truncated frame is the one corruption the stream can detect.
func (s *Session) HandleSnapshot(id EntityID, frame []byte) {
	if s == nil {
		return
	}
	ch := s.transport.Channel(id)
	if err := ch.ReadFrame(frame); err != nil {
		s.metrics.Add(metricCorruptFrames, 1)
		s.publish(logging.Event{
			Type:     logging.EventSnapshotCorrupt,
			Tick:     s.tick,
			Actor:    logging.EntityRef{ID: string(id), Kind: logging.EntityKindChannel},
			Severity: logging.SeverityWarn,
			Category: logging.CategoryReplication,
		})
	}
}

// HandleCommand applies a forwarded damage request if this participant is
// the entity's authority; anything else is a misroute and is dropped.
func (s *Session) HandleCommand(id EntityID, req CommandRequest) {
	if s == nil {
		return
	}
	e, ok := s.entities.Get(id)
	if !ok || !e.IsAuthority() {
		s.metrics.Add(metricCommandsRejected, 1)
		return
	}
	e.applyDamage(req.Amount, req.Position, req.Direction, req.Sender)
}

// HandleDespawn deactivates a replica when its authority tears the entity
// down. Replicas never initiate this themselves.
func (s *Session) HandleDespawn(id EntityID) {
	if s == nil {
		return
	}
	e, ok := s.entities.Get(id)
	if !ok || e.IsAuthority() {
		return
	}
	e.deactivate()
	s.metrics.Store(metricEntitiesActive, uint64(s.activeCount()))
	s.publish(logging.Event{
		Type:     logging.EventEntityDespawned,
		Tick:     s.tick,
		Actor:    logging.EntityRef{ID: string(id), Kind: logging.EntityKindEnemy},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
}

func (s *Session) activeCount() int {
	count := 0
	for el := s.entities.Front(); el != nil; el = el.Next() {
		if el.Value.active {
			count++
		}
	}
	return count
}

func (s *Session) localID() ParticipantID {
	if s == nil {
		return ""
	}
	return s.transport.LocalID()
}

func (s *Session) publish(event logging.Event) {
	if s == nil || s.publisher == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = s.now
	}
	s.publisher.Publish(context.Background(), event)
}
