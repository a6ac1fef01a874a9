package replication

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/internal/telemetry"
	"gravewatch/replication/internal/transport/memory"
	"gravewatch/replication/logging"
)

// testPair runs an authority session and a replica session over an
// in-process mesh and drives both tick loops in lockstep.
type testPair struct {
	t        *testing.T
	mesh     *memory.Mesh
	auth     *Session
	repl     *Session
	authMet  *telemetry.Counters
	replMet  *telemetry.Counters
	authEvts *eventRecorder
	replEvts *eventRecorder
	now      time.Time
	interval time.Duration
}

func testConfig() Config {
	return Config{
		TickRate:          20,
		SendEvery:         1,
		SnapThreshold:     3,
		PositionLerpRate:  8,
		RotationSlerpRate: 10,
		DespawnDelayTicks: 5,
		ClaimSweepTicks:   []uint64{2, 4, 8},
	}
}

func newTestPair(t *testing.T, cfg Config) *testPair {
	t.Helper()
	p := &testPair{
		t:        t,
		mesh:     memory.NewMesh(),
		authMet:  telemetry.NewCounters(),
		replMet:  telemetry.NewCounters(),
		authEvts: &eventRecorder{},
		replEvts: &eventRecorder{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		interval: 50 * time.Millisecond,
	}

	var err error
	p.auth, err = NewSession(p.mesh.Join("alice"), cfg, Deps{
		Publisher: p.authEvts,
		Metrics:   p.authMet,
	}, TickHooks{})
	if err != nil {
		t.Fatalf("NewSession authority: %v", err)
	}
	p.repl, err = NewSession(p.mesh.Join("bob"), cfg, Deps{
		Publisher: p.replEvts,
		Metrics:   p.replMet,
	}, TickHooks{})
	if err != nil {
		t.Fatalf("NewSession replica: %v", err)
	}
	return p
}

// spawn creates the entity on the authority first so the replica resolves
// its role from the claimed roster.
func (p *testPair) spawn(id EntityID, authCfg, replCfg EntityConfig) (*Entity, *Entity) {
	p.t.Helper()
	authCfg.ID = id
	replCfg.ID = id
	owner, err := p.auth.SpawnOwned(authCfg)
	if err != nil {
		p.t.Fatalf("SpawnOwned %s: %v", id, err)
	}
	mirror, err := p.repl.Spawn(replCfg)
	if err != nil {
		p.t.Fatalf("Spawn replica %s: %v", id, err)
	}
	if !owner.IsAuthority() {
		p.t.Fatalf("owner resolved role %s", owner.Role())
	}
	if mirror.IsAuthority() {
		p.t.Fatalf("mirror resolved role %s", mirror.Role())
	}
	return owner, mirror
}

// step advances both sessions n ticks. The authority ticks first, so a
// snapshot flushed this tick reaches the replica within the same step.
func (p *testPair) step(n int) {
	for i := 0; i < n; i++ {
		p.now = p.now.Add(p.interval)
		p.auth.Tick(p.now)
		p.repl.Tick(p.now)
	}
}

func (p *testPair) dt() float32 {
	return 1 / float32(p.auth.Config().TickRate)
}

// eventRecorder is a synchronous publisher for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []logging.Event
}

func (r *eventRecorder) Publish(_ context.Context, event logging.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(t logging.EventType) []logging.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []logging.Event
	for _, event := range r.events {
		if event.Type == t {
			matched = append(matched, event)
		}
	}
	return matched
}

// recorderMover captures what the replication layer pushes at the host.
type recorderMover struct {
	position mgl32.Vec3
	rotation mgl32.Quat
	setCalls int
	freezes  int
}

func (m *recorderMover) SetTransform(pos mgl32.Vec3, rot mgl32.Quat) {
	m.position = pos
	m.rotation = rot
	m.setCalls++
}

func (m *recorderMover) FreezeSimulation() {
	m.freezes++
}

// stubBehavior counts hook invocations and optionally mutates truth.
type stubBehavior struct {
	steps  int
	deaths int
	stepFn func(tick uint64, dt float32, state *GroundTruthState)
}

func (b *stubBehavior) Step(tick uint64, dt float32, state *GroundTruthState) {
	b.steps++
	if b.stepFn != nil {
		b.stepFn(tick, dt, state)
	}
}

func (b *stubBehavior) NotifyDeath() {
	b.deaths++
}
