package replication

import (
	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/logging"
)

// reconcile moves the replica's displayed transform toward the latest
// snapshot. It runs once per tick between the guard's two enforcement
// passes:
//
//   - beyond the snap threshold the position is taken outright, which
//     covers teleports, respawns, and large corrections;
//   - otherwise the horizontal axes interpolate at a configured rate while
//     the vertical axis copies straight from the snapshot — the authority
//     keeps the entity grounded, and lerping height across uneven terrain
//     cuts visibly through slopes;
//   - rotation always interpolates spherically.
//
// The very first snapshot snaps unconditionally so the entity does not
// slide in from its uninitialized spawn transform. The reconciled result
// becomes lastGood, the value the guard enforces until the next pass. A
// tick with no new snapshot keeps converging on the previous target.
func (e *Entity) reconcile(dt float32) {
	if e == nil || e.role != RoleReplica || !e.active || !e.pres.hasTarget {
		return
	}
	cfg := e.session.cfg
	snap := e.pres.target

	switch {
	case !e.pres.synced:
		e.pres.current = snap.Position
		e.pres.currentRot = normalizeRotation(snap.Rotation)
		e.pres.synced = true

	case planarDistance(e.pres.current, snap.Position) > cfg.SnapThreshold:
		e.pres.current = snap.Position
		e.pres.currentRot = normalizeRotation(snap.Rotation)
		e.session.metrics.Add(metricSnapshotSnaps, 1)
		e.session.publish(logging.Event{
			Type:     logging.EventSnapshotSnap,
			Tick:     e.session.tick,
			Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
			Severity: logging.SeverityDebug,
			Category: logging.CategoryReplication,
		})

	default:
		t := clamp01(cfg.PositionLerpRate * dt)
		cur := e.pres.current
		cur[0] += (snap.Position[0] - cur[0]) * t
		cur[2] += (snap.Position[2] - cur[2]) * t
		cur[1] = snap.Position[1]
		e.pres.current = cur

		rt := clamp01(cfg.RotationSlerpRate * dt)
		e.pres.currentRot = mgl32.QuatSlerp(e.pres.currentRot, normalizeRotation(snap.Rotation), rt)
	}

	e.pres.lastGood = e.pres.current
	e.pres.lastGoodRot = e.pres.currentRot
	if e.mover != nil {
		e.mover.SetTransform(e.pres.current, e.pres.currentRot)
	}
}
