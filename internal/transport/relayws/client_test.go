package relayws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"gravewatch/replication/internal/proto"
	"gravewatch/replication/internal/transport"
)

// stubRelay accepts one client, answers its hello with a welcome, and then
// exposes both directions of the connection to the test.
type stubRelay struct {
	t        *testing.T
	server   *httptest.Server
	received chan proto.Envelope
	outbound chan proto.Envelope
	roster   []proto.RosterEntry
	dec      *zstd.Decoder
}

func newStubRelay(t *testing.T, roster []proto.RosterEntry) *stubRelay {
	t.Helper()
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	r := &stubRelay{
		t:        t,
		received: make(chan proto.Envelope, 16),
		outbound: make(chan proto.Envelope, 16),
		roster:   roster,
		dec:      dec,
	}
	upgrader := websocket.Upgrader{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		env, err := r.read(conn)
		if err != nil || env.Type != proto.TypeHello {
			t.Errorf("first message = %+v, err %v", env, err)
			return
		}
		r.write(conn, proto.Envelope{Type: proto.TypeWelcome, To: env.From, Roster: r.roster})

		go func() {
			for out := range r.outbound {
				r.write(conn, out)
			}
		}()
		for {
			env, err := r.read(conn)
			if err != nil {
				return
			}
			if env.Type == proto.TypeHeartbeat {
				continue
			}
			r.received <- env
		}
	}))
	t.Cleanup(func() {
		r.server.Close()
		r.dec.Close()
	})
	return r
}

func (r *stubRelay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

func (r *stubRelay) read(conn *websocket.Conn) (proto.Envelope, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return proto.Envelope{}, err
	}
	payload, err := proto.UnpackMessage(r.dec, data)
	if err != nil {
		return proto.Envelope{}, err
	}
	return proto.DecodeEnvelope(payload)
}

func (r *stubRelay) write(conn *websocket.Conn, env proto.Envelope) {
	data, err := proto.EncodeEnvelope(env)
	if err != nil {
		r.t.Errorf("encode %s: %v", env.Type, err)
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, proto.PackMessage(nil, data, 0)); err != nil {
		r.t.Errorf("write %s: %v", env.Type, err)
	}
}

func (r *stubRelay) expect(t *testing.T, msgType string) proto.Envelope {
	t.Helper()
	select {
	case env := <-r.received:
		if env.Type != msgType {
			t.Fatalf("relay received %q, want %q", env.Type, msgType)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", msgType)
		return proto.Envelope{}
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type capturingHandler struct {
	snapshots chan proto.EntityID
	commands  chan proto.CommandRequest
	despawns  chan proto.EntityID
}

func newCapturingHandler() *capturingHandler {
	return &capturingHandler{
		snapshots: make(chan proto.EntityID, 16),
		commands:  make(chan proto.CommandRequest, 16),
		despawns:  make(chan proto.EntityID, 16),
	}
}

func (h *capturingHandler) HandleSnapshot(id proto.EntityID, frame []byte) { h.snapshots <- id }
func (h *capturingHandler) HandleCommand(id proto.EntityID, req proto.CommandRequest) {
	h.commands <- req
}
func (h *capturingHandler) HandleDespawn(id proto.EntityID) { h.despawns <- id }

func dialTestClient(t *testing.T, relay *stubRelay) *Client {
	t.Helper()
	client, err := Dial(Config{URL: relay.url(), Participant: "alice"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDialImportsWelcomeRoster(t *testing.T) {
	relay := newStubRelay(t, []proto.RosterEntry{{Entity: "ghoul-1", Authority: "carol"}})
	client := dialTestClient(t, relay)

	if !client.Connected() {
		t.Fatal("client not connected after handshake")
	}
	if client.LocalID() != "alice" {
		t.Fatalf("LocalID = %q", client.LocalID())
	}
	owner, ok := client.AuthorityOf("ghoul-1")
	if !ok || owner != "carol" {
		t.Fatalf("AuthorityOf = %q, %v", owner, ok)
	}
}

func TestClaimUpdatesLocalRosterBeforeEcho(t *testing.T) {
	relay := newStubRelay(t, nil)
	client := dialTestClient(t, relay)

	if err := client.Claim("ghoul-2"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	// The local roster answers immediately; spawning code must not wait
	// for the relay round trip.
	owner, ok := client.AuthorityOf("ghoul-2")
	if !ok || owner != "alice" {
		t.Fatalf("AuthorityOf after Claim = %q, %v", owner, ok)
	}

	env := relay.expect(t, proto.TypeClaim)
	if env.Entity != "ghoul-2" || env.From != "alice" {
		t.Fatalf("claim envelope = %+v", env)
	}
}

func TestInboundMessagesReachPoll(t *testing.T) {
	relay := newStubRelay(t, nil)
	client := dialTestClient(t, relay)
	handler := newCapturingHandler()

	relay.outbound <- proto.Envelope{Type: proto.TypeSnapshot, Entity: "ghoul-1", Frame: []byte{1, 2, 3, 4}}
	relay.outbound <- proto.Envelope{
		Type:    proto.TypeCommand,
		Entity:  "ghoul-1",
		To:      "alice",
		Command: &proto.CommandRequest{Amount: 10, Sender: "bob"},
	}

	waitFor(t, func() bool {
		client.Poll(handler)
		return len(handler.snapshots) > 0 && len(handler.commands) > 0
	}, "snapshot and command delivery")

	if id := <-handler.snapshots; id != "ghoul-1" {
		t.Fatalf("snapshot entity = %q", id)
	}
	if req := <-handler.commands; req.Amount != 10 || req.Sender != "bob" {
		t.Fatalf("command = %+v", req)
	}
}

func TestPeerClaimAndDespawnMaintainRoster(t *testing.T) {
	relay := newStubRelay(t, nil)
	client := dialTestClient(t, relay)
	handler := newCapturingHandler()

	relay.outbound <- proto.Envelope{Type: proto.TypeClaim, Entity: "ghoul-3", From: "dave"}
	waitFor(t, func() bool {
		_, ok := client.AuthorityOf("ghoul-3")
		return ok
	}, "claim to land in roster")
	if owner, _ := client.AuthorityOf("ghoul-3"); owner != "dave" {
		t.Fatalf("AuthorityOf = %q, want dave", owner)
	}

	relay.outbound <- proto.Envelope{Type: proto.TypeDespawn, Entity: "ghoul-3", From: "dave"}
	waitFor(t, func() bool {
		client.Poll(handler)
		_, ok := client.AuthorityOf("ghoul-3")
		return !ok && len(handler.despawns) > 0
	}, "despawn to clear roster")
}

func TestDialValidatesConfig(t *testing.T) {
	if _, err := Dial(Config{Participant: "alice"}); err == nil {
		t.Fatal("Dial without URL succeeded")
	}
	if _, err := Dial(Config{URL: "ws://localhost:0"}); err == nil {
		t.Fatal("Dial without participant succeeded")
	}
}

var _ transport.Transport = (*Client)(nil)
