package main

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	replication "gravewatch/replication"
)

const (
	wanderSpeed          = 2.4
	chaseSpeed           = 3.6
	chaseRadius          = 24.0
	wanderRadius         = 40.0
	arriveRadius         = 0.8
	wanderDecisionMin    = 20
	wanderDecisionMax    = 60
)

// wanderer is a minimal authority-side behavior: drift between random
// points on the ground plane, chase the closest target when one is in
// range, and face the direction of travel.
type wanderer struct {
	rng     *rand.Rand
	targets replication.TargetProvider

	home           mgl32.Vec3
	destination    mgl32.Vec3
	hasDestination bool
	nextDecision   uint64
	dead           bool
}

func newWanderer(home mgl32.Vec3, targets replication.TargetProvider, seed int64) *wanderer {
	return &wanderer{
		rng:     rand.New(rand.NewSource(seed)),
		targets: targets,
		home:    home,
	}
}

func (w *wanderer) Step(tick uint64, dt float32, state *replication.GroundTruthState) {
	if w.dead {
		return
	}

	speed := float32(wanderSpeed)
	goal, chasing := w.chaseGoal(state.Position)
	if chasing {
		speed = chaseSpeed
	} else {
		if !w.hasDestination || tick >= w.nextDecision || w.arrived(state.Position) {
			w.pickDestination(tick)
		}
		goal = w.destination
	}

	delta := goal.Sub(state.Position)
	delta[1] = 0
	dist := math32.Hypot(delta.X(), delta.Z())
	if dist < 1e-4 {
		return
	}
	step := speed * dt
	if step > dist {
		step = dist
	}
	dir := delta.Mul(1 / dist)
	state.Position = state.Position.Add(dir.Mul(step))

	yaw := math32.Atan2(dir.X(), dir.Z())
	state.Rotation = mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
}

func (w *wanderer) chaseGoal(from mgl32.Vec3) (mgl32.Vec3, bool) {
	if w.targets == nil {
		return mgl32.Vec3{}, false
	}
	target, ok := w.targets.ClosestTarget(from)
	if !ok {
		return mgl32.Vec3{}, false
	}
	delta := target.Sub(from)
	if math32.Hypot(delta.X(), delta.Z()) > chaseRadius {
		return mgl32.Vec3{}, false
	}
	return target, true
}

func (w *wanderer) pickDestination(tick uint64) {
	angle := w.rng.Float32() * 2 * math32.Pi
	radius := w.rng.Float32() * wanderRadius
	w.destination = mgl32.Vec3{
		w.home.X() + math32.Cos(angle)*radius,
		w.home.Y(),
		w.home.Z() + math32.Sin(angle)*radius,
	}
	w.hasDestination = true
	w.nextDecision = tick + wanderDecisionMin + uint64(w.rng.Intn(wanderDecisionMax-wanderDecisionMin))
}

func (w *wanderer) arrived(position mgl32.Vec3) bool {
	delta := w.destination.Sub(position)
	return math32.Hypot(delta.X(), delta.Z()) <= arriveRadius
}

func (w *wanderer) NotifyDeath() {
	w.dead = true
}

// trackingMover satisfies the mover capability for a headless host: it
// just records the last transform so stats can report where entities are.
type trackingMover struct {
	position mgl32.Vec3
	rotation mgl32.Quat
	frozen   bool
}

func (m *trackingMover) SetTransform(position mgl32.Vec3, rotation mgl32.Quat) {
	m.position = position
	m.rotation = rotation
}

func (m *trackingMover) FreezeSimulation() {
	m.frozen = true
}
