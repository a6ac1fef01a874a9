package replication

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"gravewatch/replication/internal/proto"
	"gravewatch/replication/logging"
)

func TestChannelExclusiveAtSpawn(t *testing.T) {
	p := newTestPair(t, testConfig())
	p.spawn("ghoul-1", EntityConfig{}, EntityConfig{})

	authCh := p.auth.Transport().Channel("ghoul-1")
	if authCh.WriterCount() != 1 || authCh.ReaderCount() != 0 {
		t.Fatalf("authority channel writers=%d readers=%d", authCh.WriterCount(), authCh.ReaderCount())
	}
	replCh := p.repl.Transport().Channel("ghoul-1")
	if replCh.WriterCount() != 0 || replCh.ReaderCount() != 1 {
		t.Fatalf("replica channel writers=%d readers=%d", replCh.WriterCount(), replCh.ReaderCount())
	}
}

func TestLateForeignWriterIsSweptOut(t *testing.T) {
	cfg := testConfig() // sweeps at ticks 2, 4, 8 after spawn
	p := newTestPair(t, cfg)
	owner, mirror := p.spawn("ghoul-1", EntityConfig{Position: mgl32.Vec3{5, 0, 5}}, EntityConfig{})
	p.step(1)

	// A late-initializing component registers after the spawn-time strip,
	// shearing the frame layout.
	ch := p.auth.Transport().Channel("ghoul-1")
	ch.RegisterWriter("audio-sync", func(w *proto.StreamWriter) {
		w.PutFloat32(123)
	})
	if ch.WriterCount() != 2 {
		t.Fatalf("writers = %d after foreign registration", ch.WriterCount())
	}

	// The next scheduled sweep removes it.
	p.step(int(cfg.ClaimSweepTicks[0]))
	if ch.WriterCount() != 1 {
		t.Fatalf("writers = %d after sweep, want 1", ch.WriterCount())
	}
	if got := p.authMet.Value(metricChannelStripped); got == 0 {
		t.Fatal("sweep did not record a strip")
	}
	events := p.authEvts.ofType(logging.EventChannelStripped)
	if len(events) == 0 {
		t.Fatal("no strip event published")
	}
	if events[len(events)-1].Extra["removed"] != 1 {
		t.Fatalf("strip event extra = %+v", events[len(events)-1].Extra)
	}

	// With exclusivity restored, replication is exact again.
	owner.GroundTruth().Position = mgl32.Vec3{50, 0, 50}
	p.step(1)
	if got := mirror.Position(); got != (mgl32.Vec3{50, 0, 50}) {
		t.Fatalf("replica at %v after recovery, want snap target", got)
	}
}

func TestForeignReaderMisalignsUntilSwept(t *testing.T) {
	cfg := testConfig()
	p := newTestPair(t, cfg)
	owner, mirror := p.spawn("ghoul-1", EntityConfig{Position: mgl32.Vec3{5, 0, 5}}, EntityConfig{})
	p.step(1)
	synced := mirror.Position()

	// A foreign reader ahead of ours would shift every field; registering
	// after ours, it instead reads past the end of each frame.
	ch := p.repl.Transport().Channel("ghoul-1")
	ch.RegisterReader("quest-tracker", func(r *proto.StreamReader) {
		r.Vec3()
	})

	owner.GroundTruth().Position = mgl32.Vec3{5.5, 0, 5}
	p.step(1)
	// The trailing reader overran the frame, so the whole sample was
	// flagged corrupt and the replica kept its previous target.
	if got := p.replMet.Value(metricCorruptFrames); got == 0 {
		t.Fatal("overrunning foreign reader not detected")
	}
	if got := mirror.Position(); planarDistance(got, synced) > 0.5 {
		t.Fatalf("replica wandered to %v on corrupt frames", got)
	}

	// After the sweeps the channel decodes cleanly again.
	p.step(int(cfg.ClaimSweepTicks[len(cfg.ClaimSweepTicks)-1]))
	if ch.ReaderCount() != 1 {
		t.Fatalf("readers = %d after final sweep", ch.ReaderCount())
	}
	owner.GroundTruth().Position = mgl32.Vec3{80, 0, 80}
	p.step(1)
	if got := mirror.Position(); got != (mgl32.Vec3{80, 0, 80}) {
		t.Fatalf("replica at %v after recovery", got)
	}
}

func TestTruncatedFrameIsDiscarded(t *testing.T) {
	p := newTestPair(t, testConfig())
	_, mirror := p.spawn("ghoul-1", EntityConfig{Position: mgl32.Vec3{5, 0, 5}}, EntityConfig{})
	p.step(1)
	before := mirror.Position()

	p.repl.HandleSnapshot("ghoul-1", []byte{1, 2, 3})

	if got := p.replMet.Value(metricCorruptFrames); got != 1 {
		t.Fatalf("corrupt frames = %d, want 1", got)
	}
	if got := p.replMet.Value(metricSnapshotsDiscarded); got != 1 {
		t.Fatalf("discarded samples = %d, want 1", got)
	}
	p.step(1)
	if got := mirror.Position(); got != before {
		t.Fatalf("replica moved to %v on a truncated frame", got)
	}
	if len(p.replEvts.ofType(logging.EventSnapshotCorrupt)) != 1 {
		t.Fatal("no corrupt-frame event published")
	}
}

func TestMostRecentSnapshotWins(t *testing.T) {
	p := newTestPair(t, testConfig())
	_, mirror := p.spawn("ghoul-1", EntityConfig{}, EntityConfig{})

	// Samples carry no sequence numbers; the last arrival is the target
	// even if it is older data.
	mirror.applySnapshot(Snapshot{Position: mgl32.Vec3{10, 0, 0}, Health: 90, Rotation: mgl32.QuatIdent()})
	mirror.applySnapshot(Snapshot{Position: mgl32.Vec3{4, 0, 0}, Health: 95, Rotation: mgl32.QuatIdent()})

	if got := mirror.Health(); got != 95 {
		t.Fatalf("replica health = %v, want most recent arrival", got)
	}
	mirror.reconcile(p.dt())
	if got := mirror.Position(); got != (mgl32.Vec3{4, 0, 0}) {
		t.Fatalf("replica reconciled to %v, want latest target", got)
	}
}
