package main

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"gravewatch/replication/internal/proto"
)

const (
	writeWait         = 10 * time.Second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
	compressAbove     = 512
)

type peer struct {
	id   proto.ParticipantID
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes to conn

	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// Hub relays session traffic between participants: snapshot and despawn
// broadcasts fan out to the room, command requests route to their
// addressee, and authority claims are recorded so late joiners receive the
// roster in their welcome.
type Hub struct {
	mu          sync.Mutex
	peers       map[proto.ParticipantID]*peer
	authorities map[proto.EntityID]proto.ParticipantID
	logger      *log.Logger
	upgrader    websocket.Upgrader
	enc         *zstd.Encoder
	dec         *zstd.Decoder
}

func newHub(logger *log.Logger) (*Hub, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("init decompressor: %w", err)
	}
	return &Hub{
		peers:       make(map[proto.ParticipantID]*peer),
		authorities: make(map[proto.EntityID]proto.ParticipantID),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		enc: enc,
		dec: dec,
	}, nil
}

// Handle upgrades a participant connection and runs its read loop.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	p, err := h.handshake(conn)
	if err != nil {
		h.logger.Printf("handshake failed: %v", err)
		conn.Close()
		return
	}
	h.logger.Printf("participant %s joined", p.id)

	defer func() {
		h.disconnect(p)
		h.logger.Printf("participant %s left", p.id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := h.decode(data)
		if err != nil {
			h.logger.Printf("bad message from %s: %v", p.id, err)
			continue
		}
		env.From = p.id
		h.route(p, env)
	}
}

// handshake expects a hello as the first message and answers with a
// welcome carrying the current authority roster.
func (h *Hub) handshake(conn *websocket.Conn) (*peer, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	env, err := h.decode(data)
	if err != nil {
		return nil, err
	}
	if env.Type != proto.TypeHello || env.From == "" {
		return nil, fmt.Errorf("expected hello with participant id, got %q", env.Type)
	}

	p := &peer{id: env.From, conn: conn, lastHeartbeat: time.Now()}

	h.mu.Lock()
	if existing, ok := h.peers[p.id]; ok {
		existing.conn.Close()
	}
	h.peers[p.id] = p
	roster := make([]proto.RosterEntry, 0, len(h.authorities))
	for entity, owner := range h.authorities {
		roster = append(roster, proto.RosterEntry{Entity: entity, Authority: owner})
	}
	h.mu.Unlock()

	welcome := proto.Envelope{Type: proto.TypeWelcome, To: p.id, Roster: roster}
	if err := h.writePeer(p, welcome); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Hub) route(p *peer, env proto.Envelope) {
	switch env.Type {
	case proto.TypeHeartbeat:
		h.heartbeat(p, env)
	case proto.TypeClaim:
		h.mu.Lock()
		h.authorities[env.Entity] = p.id
		h.mu.Unlock()
		h.broadcast(p.id, env)
	case proto.TypeDespawn:
		h.mu.Lock()
		delete(h.authorities, env.Entity)
		h.mu.Unlock()
		h.broadcast(p.id, env)
	case proto.TypeSnapshot:
		h.broadcast(p.id, env)
	case proto.TypeCommand:
		h.deliver(env.To, env)
	default:
		h.logger.Printf("dropping unknown message type %q from %s", env.Type, p.id)
	}
}

func (h *Hub) heartbeat(p *peer, env proto.Envelope) {
	now := time.Now()
	p.mu.Lock()
	p.lastHeartbeat = now
	if env.SentAt > 0 {
		sent := time.UnixMilli(env.SentAt)
		if rtt := now.Sub(sent); rtt >= 0 && rtt < 5*time.Second {
			p.lastRTT = rtt
		}
	}
	p.mu.Unlock()
}

func (h *Hub) broadcast(from proto.ParticipantID, env proto.Envelope) {
	h.mu.Lock()
	targets := make([]*peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id == from {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		if err := h.writePeer(p, env); err != nil {
			h.logger.Printf("broadcast to %s failed: %v", p.id, err)
		}
	}
}

func (h *Hub) deliver(to proto.ParticipantID, env proto.Envelope) {
	h.mu.Lock()
	p, ok := h.peers[to]
	h.mu.Unlock()
	if !ok {
		h.logger.Printf("dropping %s for unknown participant %s", env.Type, to)
		return
	}
	if err := h.writePeer(p, env); err != nil {
		h.logger.Printf("deliver to %s failed: %v", to, err)
	}
}

func (h *Hub) writePeer(p *peer, env proto.Envelope) error {
	data, err := proto.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	packed := proto.PackMessage(h.enc, data, compressAbove)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.BinaryMessage, packed)
}

func (h *Hub) decode(data []byte) (proto.Envelope, error) {
	payload, err := proto.UnpackMessage(h.dec, data)
	if err != nil {
		return proto.Envelope{}, err
	}
	return proto.DecodeEnvelope(payload)
}

func (h *Hub) disconnect(p *peer) {
	h.mu.Lock()
	if current, ok := h.peers[p.id]; ok && current == p {
		delete(h.peers, p.id)
	}
	orphaned := make([]proto.EntityID, 0)
	for entity, owner := range h.authorities {
		if owner == p.id {
			orphaned = append(orphaned, entity)
			delete(h.authorities, entity)
		}
	}
	h.mu.Unlock()
	p.conn.Close()

	// The authority is fixed at entity creation; losing it orphans the
	// entity until its spawn director reacts. The relay only reports it.
	for _, entity := range orphaned {
		h.logger.Printf("entity %s lost its authority %s", entity, p.id)
	}
}

// runPruning disconnects peers whose heartbeats stopped.
func (h *Hub) runPruning(stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			h.mu.Lock()
			stale := make([]*peer, 0)
			for _, p := range h.peers {
				p.mu.Lock()
				last := p.lastHeartbeat
				p.mu.Unlock()
				if now.Sub(last) > disconnectAfter {
					stale = append(stale, p)
				}
			}
			h.mu.Unlock()
			for _, p := range stale {
				h.logger.Printf("disconnecting %s due to heartbeat timeout", p.id)
				h.disconnect(p)
			}
		}
	}
}
