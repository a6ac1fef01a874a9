package replication

// enforce stamps the last reconciled transform back over the live one. It
// runs twice per tick, before the host's integration step and again after
// every per-tick callback has had its chance to write, bracketing the
// window in which uncoordinated local subsystems (physics velocity,
// animation root motion, path followers) touch the transform. Overwriting
// unconditionally is wasted work on quiet ticks, but it is cheaper and far
// more robust than finding and silencing every possible writer.
//
// Nothing is enforced before the first snapshot lands; until then the spawn
// transform is the best information available.
func (e *Entity) enforce() {
	if e == nil || e.role != RoleReplica || !e.active || !e.pres.synced {
		return
	}
	e.pres.current = e.pres.lastGood
	e.pres.currentRot = e.pres.lastGoodRot
	if e.mover != nil {
		e.mover.SetTransform(e.pres.lastGood, e.pres.lastGoodRot)
	}
	e.session.metrics.Add(metricGuardOverwrites, 1)
}
