package replication

// Role fixes which side of the replication protocol this process runs for
// one entity. It is resolved once at construction and never changes.
type Role uint8

const (
	// RoleAuthority runs the entity's real simulation and is the source of
	// truth for its state.
	RoleAuthority Role = iota
	// RoleReplica displays an approximation of the authority's state and
	// never simulates independently.
	RoleReplica
)

func (r Role) String() string {
	switch r {
	case RoleAuthority:
		return "authority"
	case RoleReplica:
		return "replica"
	default:
		return "unknown"
	}
}

// SessionInfo is the slice of session state role resolution needs. The
// transport supplies it.
type SessionInfo interface {
	LocalID() ParticipantID
	Connected() bool
	AuthorityOf(id EntityID) (ParticipantID, bool)
}

// ResolveRole determines whether the local process is the authority or a
// replica for an entity. It is pure: the same session state always yields
// the same role. When role information is unavailable (no transport, or not
// yet connected) the entity runs in solo mode, which is authority with no
// replication traffic; that fallback is never fatal.
func ResolveRole(info SessionInfo, id EntityID) Role {
	if info == nil || !info.Connected() {
		return RoleAuthority
	}
	owner, ok := info.AuthorityOf(id)
	if !ok {
		return RoleAuthority
	}
	if owner == info.LocalID() {
		return RoleAuthority
	}
	return RoleReplica
}
