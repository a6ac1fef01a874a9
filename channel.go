package replication

import (
	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/internal/proto"
	"gravewatch/replication/logging"
)

// channelOwner tags this package's registrations on an entity's snapshot
// channel so exclusivity sweeps know what to keep.
func channelOwner(id EntityID) string {
	return "replication/" + string(id)
}

// bindChannel registers this entity as the sole serializer of its snapshot
// channel and schedules the follow-up exclusivity sweeps. The authority
// registers the writer; replicas register the reader. The first strip runs
// immediately, but components that initialize late can register afterwards
// and silently shear the writer/reader field alignment, so the sweep
// re-runs on a finite schedule and then stops.
func (e *Entity) bindChannel() {
	if e == nil || e.session == nil {
		return
	}
	ch := e.session.transport.Channel(e.id)
	owner := channelOwner(e.id)
	if e.role == RoleAuthority {
		ch.RegisterWriter(owner, e.serializeState)
	} else {
		ch.RegisterReader(owner, e.deserializeState)
	}
	e.claimChannel(ch, 0)
	e.session.scheduler.Retry(e.session.cfg.ClaimSweepTicks, func(attempt int) {
		if e.active {
			e.claimChannel(ch, attempt+1)
		}
	})
}

// claimChannel strips every foreign registration from the channel.
func (e *Entity) claimChannel(ch *Channel, pass int) {
	removed := ch.Strip(channelOwner(e.id))
	if removed == 0 {
		return
	}
	e.session.metrics.Add(metricChannelStripped, uint64(removed))
	e.session.publish(logging.Event{
		Type:     logging.EventChannelStripped,
		Tick:     e.session.tick,
		Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindChannel},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryReplication,
		Extra:    map[string]any{"removed": removed, "pass": pass},
	})
}

// serializeState writes the replicated tuple in its fixed order.
func (e *Entity) serializeState(w *proto.StreamWriter) {
	snap := e.truth.snapshot()
	w.PutVec3(snap.Position)
	w.PutQuat(snap.Rotation)
	w.PutFloat32(snap.Health)
	w.PutBool(snap.Dead)
}

// deserializeState consumes the replicated tuple in the same fixed order
// the authority wrote it.
func (e *Entity) deserializeState(r *proto.StreamReader) {
	snap := Snapshot{
		Position: r.Vec3(),
		Rotation: r.Quat(),
		Health:   r.Float32(),
		Dead:     r.Bool(),
	}
	if r.Err() != nil {
		// The frame ran short. There is no recovery; drop the sample and
		// keep moving toward the previous target.
		e.session.metrics.Add(metricSnapshotsDiscarded, 1)
		return
	}
	e.applySnapshot(snap)
}

// applySnapshot records the newest authoritative sample. Samples are not
// sequenced; the most recent arrival wins even if the transport reordered
// it past a newer one.
func (e *Entity) applySnapshot(snap Snapshot) {
	if e == nil || e.role != RoleReplica || !e.active {
		return
	}
	prevDead := e.pres.hasTarget && e.pres.target.Dead
	e.pres.target = snap
	e.pres.hasTarget = true
	e.session.metrics.Add(metricSnapshotsReceived, 1)
	e.dispatchDeathEdge(prevDead, snap.Dead)
}

// normalizeRotation guards against an uninitialized quaternion sneaking in
// from a zeroed frame.
func normalizeRotation(q mgl32.Quat) mgl32.Quat {
	if q == (mgl32.Quat{}) {
		return mgl32.QuatIdent()
	}
	return q
}
