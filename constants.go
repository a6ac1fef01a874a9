package replication

const (
	defaultTickRate      = 20 // simulation ticks per second
	defaultSendEvery     = 2  // simulation ticks between snapshot sends
	defaultSnapThreshold = 3.0
	defaultPositionLerp  = 8.0  // per-second pull toward the target snapshot
	defaultRotationSlerp = 10.0 // per-second pull toward the target rotation
	defaultMaxHealth     = 100.0
	defaultDespawnDelay  = 80 // ticks between death and teardown (4s at 20 Hz)
)

// defaultClaimSweeps re-runs channel exclusivity enforcement at these tick
// offsets after spawn. Late-initializing local components can register
// against the channel after the first strip; the sweeps catch them, then
// stop for good.
var defaultClaimSweeps = []uint64{10, 30, 60}

// Metric keys recorded through telemetry.Metrics.
const (
	metricSnapshotsSent      = "replication_snapshots_sent_total"
	metricSnapshotsReceived  = "replication_snapshots_received_total"
	metricSnapshotSnaps      = "replication_snapshot_snaps_total"
	metricGuardOverwrites    = "replication_guard_overwrites_total"
	metricChannelStripped    = "replication_channel_stripped_total"
	metricCommandsForwarded  = "replication_commands_forwarded_total"
	metricCommandsApplied    = "replication_commands_applied_total"
	metricCommandsRejected   = "replication_commands_rejected_total"
	metricDeathEdges         = "replication_death_edges_total"
	metricDespawnsIssued     = "replication_despawns_issued_total"
	metricCorruptFrames      = "replication_corrupt_frames_total"
	metricEntitiesActive     = "replication_entities_active"
	metricCommandsReentrant  = "replication_commands_reentrant_total"
	metricSnapshotsDiscarded = "replication_snapshots_discarded_total"
)
