package replication

import "github.com/go-gl/mathgl/mgl32"

// BehaviorController is the authority-side simulation hook. The replication
// layer calls Step once per tick with direct access to the ground truth and
// reads whatever the controller produced; it never copies or interposes.
//
// NotifyDeath fires on the death edge on every participant. It must be
// safely callable after the controller has been deactivated, because
// deactivation is one of the side effects the death callback itself
// triggers.
type BehaviorController interface {
	Step(tick uint64, dt float32, state *GroundTruthState)
	NotifyDeath()
}

// DamageObserver is implemented by behavior controllers that run their own
// damage side effects (hit reactions, blood). The applier invokes it inside
// the self-mutation window so any damage request the observer echoes back
// is ignored rather than applied twice.
type DamageObserver interface {
	DamageObserved(amount float32, position, direction mgl32.Vec3)
}

// LocalMover is the capability a host's presentation or physics subsystem
// exposes to entities under replication. SetTransform is the single write
// path the guard stamps authoritative transforms through; FreezeSimulation
// tells the subsystem to stop producing its own motion for this entity.
// Subsystems that opt in via this interface replace the old pattern of the
// replication layer hunting down and disabling every conflicting component.
type LocalMover interface {
	SetTransform(position mgl32.Vec3, rotation mgl32.Quat)
	FreezeSimulation()
}

// TargetProvider supplies cross-entity context, such as the closest player
// position, to authority-side behavior. It is injected at construction so
// entities never reach for ambient globals.
type TargetProvider interface {
	ClosestTarget(from mgl32.Vec3) (mgl32.Vec3, bool)
}

// TickHooks lets the host interleave its own per-frame work at defined
// points inside a session tick. Integration runs between the pre-physics
// guard pass and reconciliation, which is exactly the window foreign
// transform writes are expected in.
type TickHooks struct {
	// Integrate runs the host's physics/animation step for this frame.
	Integrate func(tick uint64, dt float32)
	// PostTick runs after the guard's closing pass.
	PostTick func(tick uint64)
}
