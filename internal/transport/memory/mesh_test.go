package memory

import (
	"testing"

	"gravewatch/replication/internal/proto"
)

type recordingHandler struct {
	snapshots []proto.EntityID
	commands  []proto.CommandRequest
	despawns  []proto.EntityID
}

func (h *recordingHandler) HandleSnapshot(id proto.EntityID, frame []byte) {
	h.snapshots = append(h.snapshots, id)
}

func (h *recordingHandler) HandleCommand(id proto.EntityID, req proto.CommandRequest) {
	h.commands = append(h.commands, req)
}

func (h *recordingHandler) HandleDespawn(id proto.EntityID) {
	h.despawns = append(h.despawns, id)
}

func TestMeshSnapshotBroadcastSkipsSender(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	bob := mesh.Join("bob")
	carol := mesh.Join("carol")

	if err := alice.SendSnapshot("ghoul-1", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}

	var aliceGot, bobGot, carolGot recordingHandler
	alice.Poll(&aliceGot)
	bob.Poll(&bobGot)
	carol.Poll(&carolGot)

	if len(aliceGot.snapshots) != 0 {
		t.Fatal("sender received its own snapshot")
	}
	if len(bobGot.snapshots) != 1 || bobGot.snapshots[0] != "ghoul-1" {
		t.Fatalf("bob snapshots = %v", bobGot.snapshots)
	}
	if len(carolGot.snapshots) != 1 {
		t.Fatalf("carol snapshots = %v", carolGot.snapshots)
	}
}

func TestMeshCommandRoutesToAddressee(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	bob := mesh.Join("bob")
	carol := mesh.Join("carol")

	req := proto.CommandRequest{Amount: 10, Sender: "bob"}
	if err := bob.SendCommand("alice", "ghoul-1", req); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	var aliceGot, carolGot recordingHandler
	alice.Poll(&aliceGot)
	carol.Poll(&carolGot)

	if len(aliceGot.commands) != 1 || aliceGot.commands[0].Amount != 10 {
		t.Fatalf("alice commands = %+v", aliceGot.commands)
	}
	if len(carolGot.commands) != 0 {
		t.Fatal("command leaked to a third participant")
	}

	if err := bob.SendCommand("nobody", "ghoul-1", req); err == nil {
		t.Fatal("expected error sending to unknown participant")
	}
}

func TestMeshClaimUpdatesRoster(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	bob := mesh.Join("bob")

	if _, ok := bob.AuthorityOf("ghoul-1"); ok {
		t.Fatal("unclaimed entity had an authority")
	}
	if err := alice.Claim("ghoul-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	owner, ok := bob.AuthorityOf("ghoul-1")
	if !ok || owner != "alice" {
		t.Fatalf("AuthorityOf = %q, %v", owner, ok)
	}
}

func TestSoloParticipantIsDisconnected(t *testing.T) {
	solo := NewSolo("hermit")
	if solo.Connected() {
		t.Fatal("solo participant reported connected")
	}
	if _, ok := solo.AuthorityOf("ghoul-1"); ok {
		t.Fatal("solo participant resolved an authority")
	}
	// Sends are silent no-ops; nothing listens.
	if err := solo.SendSnapshot("ghoul-1", []byte{1}); err != nil {
		t.Fatalf("solo SendSnapshot: %v", err)
	}
	if err := solo.SendDespawn("ghoul-1"); err != nil {
		t.Fatalf("solo SendDespawn: %v", err)
	}
}

func TestMeshLeaveStopsDelivery(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	bob := mesh.Join("bob")
	mesh.Leave("bob")

	alice.SendDespawn("ghoul-1")

	var bobGot recordingHandler
	bob.Poll(&bobGot)
	if len(bobGot.despawns) != 0 {
		t.Fatal("departed participant still received broadcasts")
	}
}

func TestChannelIsPerEntityAndCached(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")

	a := alice.Channel("ghoul-1")
	b := alice.Channel("ghoul-1")
	if a != b {
		t.Fatal("repeated Channel calls returned different channels")
	}
	if a == alice.Channel("ghoul-2") {
		t.Fatal("distinct entities shared a channel")
	}
}
