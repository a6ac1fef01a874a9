package replication

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/logging"
)

// RequestMutation routes a damage request to wherever the truth lives. On
// the authority it applies immediately; on a replica it is packaged into a
// CommandRequest and sent fire-and-forget to the authority participant.
// There is no reply path: the resulting state change arrives later through
// the snapshot channel like any other truth, so no participant ever holds
// a health value the authority did not publish.
//
// A request arriving while the entity is mid-apply is the entity's own
// mutation echoing back through a local damage observer and is dropped.
func (e *Entity) RequestMutation(amount float32, position, direction mgl32.Vec3) error {
	if e == nil || !e.active {
		return nil
	}
	if e.selfMutating {
		e.session.metrics.Add(metricCommandsReentrant, 1)
		return nil
	}

	if e.role == RoleAuthority {
		e.applyDamage(amount, position, direction, e.session.localID())
		return nil
	}

	owner, ok := e.session.transport.AuthorityOf(e.id)
	if !ok {
		e.session.metrics.Add(metricCommandsRejected, 1)
		return fmt.Errorf("replication: no authority known for entity %q", e.id)
	}
	req := CommandRequest{
		Amount:    amount,
		Position:  position,
		Direction: direction,
		Sender:    e.session.localID(),
	}
	if err := e.session.transport.SendCommand(owner, e.id, req); err != nil {
		return fmt.Errorf("replication: forward damage for %q: %w", e.id, err)
	}
	e.session.metrics.Add(metricCommandsForwarded, 1)
	e.session.publish(logging.Event{
		Type:     logging.EventDamageForwarded,
		Tick:     e.session.tick,
		Actor:    logging.EntityRef{ID: string(e.id), Kind: logging.EntityKindEnemy},
		Targets:  []logging.EntityRef{{ID: string(owner), Kind: logging.EntityKindParticipant}},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Extra:    map[string]any{"amount": amount},
	})
	return nil
}
