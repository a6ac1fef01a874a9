package replication

// Config captures the tuning knobs for a session's replication behavior.
type Config struct {
	// TickRate is the simulation tick frequency in Hz.
	TickRate int `json:"tickRate" yaml:"tick_rate"`
	// SendEvery is the number of simulation ticks between snapshot sends.
	SendEvery int `json:"sendEvery" yaml:"send_every"`
	// SnapThreshold is the planar divergence beyond which a replica stops
	// interpolating and snaps to the snapshot position outright.
	SnapThreshold float32 `json:"snapThreshold" yaml:"snap_threshold"`
	// PositionLerpRate scales per-second horizontal pull toward the target.
	PositionLerpRate float32 `json:"positionLerpRate" yaml:"position_lerp_rate"`
	// RotationSlerpRate scales per-second spherical pull toward the target
	// rotation.
	RotationSlerpRate float32 `json:"rotationSlerpRate" yaml:"rotation_slerp_rate"`
	// DespawnDelayTicks is how long a dead entity lingers before the
	// authority issues a network-wide teardown.
	DespawnDelayTicks uint64 `json:"despawnDelayTicks" yaml:"despawn_delay_ticks"`
	// ClaimSweepTicks are the offsets after spawn at which channel
	// exclusivity is re-enforced. The list is finite; after the last sweep
	// the invariant is assumed stable.
	ClaimSweepTicks []uint64 `json:"claimSweepTicks" yaml:"claim_sweep_ticks"`
}

// normalized returns a config with defaults applied.
func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.TickRate <= 0 {
		normalized.TickRate = defaultTickRate
	}
	if normalized.SendEvery <= 0 {
		normalized.SendEvery = defaultSendEvery
	}
	if normalized.SnapThreshold <= 0 {
		normalized.SnapThreshold = defaultSnapThreshold
	}
	if normalized.PositionLerpRate <= 0 {
		normalized.PositionLerpRate = defaultPositionLerp
	}
	if normalized.RotationSlerpRate <= 0 {
		normalized.RotationSlerpRate = defaultRotationSlerp
	}
	if normalized.DespawnDelayTicks == 0 {
		normalized.DespawnDelayTicks = defaultDespawnDelay
	}
	if normalized.ClaimSweepTicks == nil {
		normalized.ClaimSweepTicks = append([]uint64(nil), defaultClaimSweeps...)
	}
	return normalized
}

// DefaultConfig returns the tuning used when callers pass a zero Config.
func DefaultConfig() Config {
	return Config{}.normalized()
}
