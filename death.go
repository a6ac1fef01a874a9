package replication

import "gravewatch/replication/logging"

// dispatchDeathEdge fires the local death callback on the false→true edge
// of the replicated death flag. Later snapshots that still carry the flag
// are no-ops, as is a reordered stale sample arriving after the edge.
func (e *Entity) dispatchDeathEdge(prevDead, newDead bool) {
	if e == nil || prevDead || !newDead {
		return
	}
	e.fireDeathCallback()
}

// fireDeathCallback notifies the behavior hook exactly once per activation.
// NotifyDeath must work even on a controller that already deactivated
// itself, because deactivation (hide visuals, stop movement) is one of the
// side effects the callback triggers.
func (e *Entity) fireDeathCallback() {
	if e == nil || e.deathNotified {
		return
	}
	e.deathNotified = true
	e.deathTick = e.session.tick
	e.session.metrics.Add(metricDeathEdges, 1)
	e.session.publish(logging.Event{
		Type:     logging.EventEntityDied,
		Tick:     e.session.tick,
		Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
	if e.behavior != nil {
		e.behavior.NotifyDeath()
	}
}

// scheduleDespawn queues the authority's unilateral teardown a fixed delay
// after death. Replicas never initiate teardown; they deactivate when the
// despawn message arrives.
func (e *Entity) scheduleDespawn() {
	if e == nil || e.role != RoleAuthority {
		return
	}
	s := e.session
	s.scheduler.After(s.cfg.DespawnDelayTicks, func() {
		if e.active && e.truth.Dead {
			s.despawn(e)
		}
	})
}
