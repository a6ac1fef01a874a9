package replication

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/logging"
)

// EntityConfig describes one hostile entity at spawn time.
type EntityConfig struct {
	ID        EntityID
	Position  mgl32.Vec3
	Rotation  mgl32.Quat
	MaxHealth float32
	// Behavior is the authority-side simulation hook. Replicas keep it only
	// for the death callback.
	Behavior BehaviorController
	// Mover is the host subsystem the guard stamps transforms through.
	Mover LocalMover
	// Targets supplies cross-entity context to authority behavior.
	Targets TargetProvider
}

// Entity is one replicated hostile actor as seen by the local process. Its
// role is fixed at construction: the authority instance owns the ground
// truth and everyone else maintains a reconciled presentation of it.
//
// Entities are not safe for concurrent use; all methods run on the
// session's tick goroutine.
type Entity struct {
	id       EntityID
	role     Role
	session  *Session
	behavior BehaviorController
	mover    LocalMover
	targets  TargetProvider

	maxHealth float32
	truth     GroundTruthState
	pres      presentationState

	selfMutating  bool
	deathNotified bool
	deathTick     uint64
	active        bool
}

func newEntity(s *Session, cfg EntityConfig) (*Entity, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("replication: entity id is required")
	}
	maxHealth := cfg.MaxHealth
	if maxHealth <= 0 {
		maxHealth = defaultMaxHealth
	}
	rot := cfg.Rotation
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}

	e := &Entity{
		id:        cfg.ID,
		role:      ResolveRole(s.transport, cfg.ID),
		session:   s,
		behavior:  cfg.Behavior,
		mover:     cfg.Mover,
		targets:   cfg.Targets,
		maxHealth: maxHealth,
		active:    true,
	}
	e.truth.reset(cfg.Position, rot, maxHealth)
	e.pres.reset(cfg.Position, rot)

	if e.role == RoleReplica && e.mover != nil {
		// Replicas must not run independent simulation for this entity.
		e.mover.FreezeSimulation()
	}

	e.bindChannel()
	return e, nil
}

// ID returns the entity's immutable identifier.
func (e *Entity) ID() EntityID {
	if e == nil {
		return ""
	}
	return e.id
}

// Role reports the fixed replication role of this instance.
func (e *Entity) Role() Role {
	if e == nil {
		return RoleReplica
	}
	return e.role
}

// IsAuthority reports whether this process simulates the entity.
func (e *Entity) IsAuthority() bool {
	return e != nil && e.role == RoleAuthority
}

// Active reports whether the entity is live (spawned and not torn down).
func (e *Entity) Active() bool {
	return e != nil && e.active
}

// IsDead reports the entity's terminal state. On the authority this is the
// ground truth; on a replica it is the latest snapshot's death flag.
func (e *Entity) IsDead() bool {
	if e == nil {
		return false
	}
	if e.role == RoleAuthority {
		return e.truth.Dead
	}
	return e.pres.hasTarget && e.pres.target.Dead
}

// Health returns the authoritative health on the authority, or the last
// replicated value on a replica.
func (e *Entity) Health() float32 {
	if e == nil {
		return 0
	}
	if e.role == RoleAuthority {
		return e.truth.Health
	}
	if e.pres.hasTarget {
		return e.pres.target.Health
	}
	return e.maxHealth
}

// MaxHealth returns the configured health ceiling.
func (e *Entity) MaxHealth() float32 {
	if e == nil {
		return 0
	}
	return e.maxHealth
}

// Position returns the locally displayed position: ground truth on the
// authority, reconciled presentation on a replica.
func (e *Entity) Position() mgl32.Vec3 {
	if e == nil {
		return mgl32.Vec3{}
	}
	if e.role == RoleAuthority {
		return e.truth.Position
	}
	return e.pres.current
}

// Rotation returns the locally displayed rotation.
func (e *Entity) Rotation() mgl32.Quat {
	if e == nil {
		return mgl32.QuatIdent()
	}
	if e.role == RoleAuthority {
		return e.truth.Rotation
	}
	return e.pres.currentRot
}

// GroundTruth exposes the authoritative state for behavior controllers and
// tests. It returns nil on replicas, which own no truth.
func (e *Entity) GroundTruth() *GroundTruthState {
	if e == nil || e.role != RoleAuthority {
		return nil
	}
	return &e.truth
}

// LastGoodPosition returns the value the guard enforces on a replica.
func (e *Entity) LastGoodPosition() mgl32.Vec3 {
	if e == nil {
		return mgl32.Vec3{}
	}
	return e.pres.lastGood
}

// SetLiveTransform is the write path uncoordinated local subsystems end up
// on (root motion, leftover physics velocity, path followers). The guard
// overwrites whatever arrives here with the last reconciled value, so the
// call is honored only until the next enforcement point.
func (e *Entity) SetLiveTransform(pos mgl32.Vec3, rot mgl32.Quat) {
	if e == nil {
		return
	}
	if e.role == RoleAuthority {
		e.truth.Position = pos
		e.truth.Rotation = rot
		return
	}
	e.pres.current = pos
	e.pres.currentRot = rot
}

// Targets returns the cross-entity context supplied at construction.
func (e *Entity) Targets() TargetProvider {
	if e == nil {
		return nil
	}
	return e.targets
}

// Reactivate puts a pooled entity back into play at a new transform. The
// role is whatever was resolved at construction; pooling never reassigns
// it. Ground truth resets to full health and not-dead, presentation resets
// to the spawn transform, and channel exclusivity is enforced again from
// scratch.
func (e *Entity) Reactivate(pos mgl32.Vec3, rot mgl32.Quat) {
	if e == nil {
		return
	}
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	e.truth.reset(pos, rot, e.maxHealth)
	e.pres.reset(pos, rot)
	e.selfMutating = false
	e.deathNotified = false
	e.deathTick = 0
	e.active = true

	if e.role == RoleReplica && e.mover != nil {
		e.mover.FreezeSimulation()
	}
	e.bindChannel()

	if e.session != nil {
		e.session.publish(logging.Event{
			Type:     logging.EventEntityReactivated,
			Tick:     e.session.tick,
			Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
			Severity: logging.SeverityDebug,
			Category: logging.CategoryReplication,
		})
	}
}

// deactivate takes the entity out of play and releases its channel
// registrations so a pooled reuse starts clean.
func (e *Entity) deactivate() {
	if e == nil || !e.active {
		return
	}
	e.active = false
	if e.session != nil {
		ch := e.session.transport.Channel(e.id)
		ch.Strip("")
	}
	if e.mover != nil {
		e.mover.FreezeSimulation()
	}
}
