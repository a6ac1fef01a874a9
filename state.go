package replication

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GroundTruthState is the authoritative record for one entity. Exactly one
// writer exists by construction: the authority's behavior step plus the
// mutation path in this package. Replicas never hold one with meaningful
// contents.
type GroundTruthState struct {
	Position  mgl32.Vec3
	Rotation  mgl32.Quat
	Health    float32
	MaxHealth float32
	Dead      bool
}

// reset restores the state for a fresh activation, including pooled reuse.
func (s *GroundTruthState) reset(pos mgl32.Vec3, rot mgl32.Quat, maxHealth float32) {
	if s == nil {
		return
	}
	if maxHealth <= 0 {
		maxHealth = defaultMaxHealth
	}
	s.Position = pos
	s.Rotation = rot
	s.Health = maxHealth
	s.MaxHealth = maxHealth
	s.Dead = false
}

// snapshot copies the replicated tuple out of the ground truth.
func (s *GroundTruthState) snapshot() Snapshot {
	return Snapshot{
		Position: s.Position,
		Rotation: s.Rotation,
		Health:   s.Health,
		Dead:     s.Dead,
	}
}

// Snapshot is one immutable authoritative state sample. Snapshots carry no
// sequence number: the transport's ordering is trusted and the most recent
// arrival wins.
type Snapshot struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Health   float32
	Dead     bool
}

// presentationState is the replica-side displayed transform. It has one
// writer, the reconciliation step, and the guard re-stamps its lastGood
// values over anything other local subsystems wrote.
type presentationState struct {
	current     mgl32.Vec3
	currentRot  mgl32.Quat
	lastGood    mgl32.Vec3
	lastGoodRot mgl32.Quat
	target      Snapshot
	hasTarget   bool
	synced      bool
}

func (p *presentationState) reset(pos mgl32.Vec3, rot mgl32.Quat) {
	p.current = pos
	p.currentRot = rot
	p.lastGood = pos
	p.lastGoodRot = rot
	p.target = Snapshot{}
	p.hasTarget = false
	p.synced = false
}

// planarDistance measures horizontal divergence, ignoring the vertical
// axis. Height is always taken straight from the authority, so it must not
// influence the snap decision.
func planarDistance(a, b mgl32.Vec3) float32 {
	return math32.Hypot(b[0]-a[0], b[2]-a[2])
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
