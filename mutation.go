package replication

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/logging"
)

// applyDamage is the only path that mutates authoritative health and the
// only path allowed to set the death flag. Dead entities reject further
// mutation outright, so health never goes negative and the death
// transition happens at most once per activation.
//
// The self-mutating flag covers entities that run their own local damage
// side effects: when the observer hook reacts to this very mutation by
// issuing another damage request, RequestMutation sees the flag and drops
// the echo instead of applying the same hit twice.
func (e *Entity) applyDamage(amount float32, position, direction mgl32.Vec3, attacker ParticipantID) {
	if e == nil || e.role != RoleAuthority || !e.active {
		return
	}
	if e.truth.Dead {
		e.session.metrics.Add(metricCommandsRejected, 1)
		e.session.publish(logging.Event{
			Type:     logging.EventDamageRejected,
			Tick:     e.session.tick,
			Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
			Severity: logging.SeverityDebug,
			Category: logging.CategoryCombat,
		})
		return
	}
	if math32.IsNaN(amount) || math32.IsInf(amount, 0) || amount < 0 {
		e.session.metrics.Add(metricCommandsRejected, 1)
		return
	}

	e.selfMutating = true
	defer func() { e.selfMutating = false }()

	health := e.truth.Health - amount
	if health < 0 {
		health = 0
	}
	e.truth.Health = health
	e.session.metrics.Add(metricCommandsApplied, 1)

	if observer, ok := e.behavior.(DamageObserver); ok {
		observer.DamageObserved(amount, position, direction)
	}

	e.session.publish(logging.Event{
		Type:     logging.EventDamageApplied,
		Tick:     e.session.tick,
		Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
		Targets:  []logging.EntityRef{{ID: string(attacker), Kind: logging.EntityKindParticipant}},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Extra:    map[string]any{"amount": amount, "health": health},
	})

	if health <= 0 {
		e.truth.Dead = true
		e.fireDeathCallback()
		e.scheduleDespawn()
	}
}
