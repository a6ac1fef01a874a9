// Package relayws implements the core Transport over a websocket relay.
// The relay fans snapshot and despawn broadcasts out to the room, routes
// command requests to their addressee, and distributes authority claims so
// every participant can answer role queries locally.
package relayws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"gravewatch/replication/internal/proto"
	"gravewatch/replication/internal/telemetry"
	"gravewatch/replication/internal/transport"
)

const (
	defaultInboxCapacity = 512
	defaultCompressAbove = 512
	writeWait            = 10 * time.Second
	heartbeatInterval    = 2 * time.Second
)

// Config tunes a relay client connection.
type Config struct {
	// URL is the relay websocket endpoint, e.g. ws://host:port/session.
	URL string
	// Participant identifies this process in the room.
	Participant proto.ParticipantID
	// InboxCapacity bounds the queue between the read pump and Poll.
	InboxCapacity int
	// CompressAbove is the payload size in bytes beyond which messages are
	// zstd-compressed. Zero uses the default; negative disables compression.
	CompressAbove int
	// Logger receives connection diagnostics.
	Logger telemetry.Logger
}

// Client is one participant's connection to the relay.
type Client struct {
	cfg    Config
	conn   *websocket.Conn
	logger telemetry.Logger

	writeMu sync.Mutex
	inbox   *transport.Inbox

	mu          sync.Mutex
	channels    map[proto.EntityID]*transport.Channel
	authorities map[proto.EntityID]proto.ParticipantID
	connected   bool

	enc *zstd.Encoder
	dec *zstd.Decoder

	done chan struct{}
	wg   sync.WaitGroup
}

// Dial connects to the relay, performs the hello/welcome handshake, and
// starts the read and heartbeat pumps.
func Dial(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("relayws: missing relay URL")
	}
	if cfg.Participant == "" {
		return nil, fmt.Errorf("relayws: missing participant id")
	}
	if cfg.InboxCapacity <= 0 {
		cfg.InboxCapacity = defaultInboxCapacity
	}
	if cfg.CompressAbove == 0 {
		cfg.CompressAbove = defaultCompressAbove
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("relayws: dial %s: %w", cfg.URL, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("relayws: init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		conn.Close()
		return nil, fmt.Errorf("relayws: init decompressor: %w", err)
	}

	c := &Client{
		cfg:         cfg,
		conn:        conn,
		logger:      logger,
		inbox:       transport.NewInbox(cfg.InboxCapacity),
		channels:    make(map[proto.EntityID]*transport.Channel),
		authorities: make(map[proto.EntityID]proto.ParticipantID),
		enc:         enc,
		dec:         dec,
		done:        make(chan struct{}),
	}

	if err := c.send(proto.Envelope{Type: proto.TypeHello, From: cfg.Participant}); err != nil {
		c.teardown()
		return nil, err
	}
	if err := c.awaitWelcome(); err != nil {
		c.teardown()
		return nil, err
	}

	c.wg.Add(2)
	go c.readPump()
	go c.heartbeatPump()
	return c, nil
}

func (c *Client) awaitWelcome() error {
	c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("relayws: read welcome: %w", err)
	}
	payload, err := proto.UnpackMessage(c.dec, data)
	if err != nil {
		return err
	}
	env, err := proto.DecodeEnvelope(payload)
	if err != nil {
		return err
	}
	if env.Type != proto.TypeWelcome {
		return fmt.Errorf("relayws: expected welcome, got %q", env.Type)
	}
	c.mu.Lock()
	for _, entry := range env.Roster {
		c.authorities[entry.Entity] = entry.Authority
	}
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) readPump() {
	defer c.wg.Done()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Printf("relayws: read failed: %v", err)
				c.markDisconnected()
			}
			return
		}
		payload, err := proto.UnpackMessage(c.dec, data)
		if err != nil {
			c.logger.Printf("relayws: %v", err)
			continue
		}
		env, err := proto.DecodeEnvelope(payload)
		if err != nil {
			c.logger.Printf("relayws: %v", err)
			continue
		}
		c.dispatch(env)
	}
}

// dispatch applies roster bookkeeping on the pump goroutine and queues
// everything the session consumes for the next Poll pass.
func (c *Client) dispatch(env proto.Envelope) {
	switch env.Type {
	case proto.TypeClaim:
		c.mu.Lock()
		c.authorities[env.Entity] = env.From
		c.mu.Unlock()
	case proto.TypeRoster:
		c.mu.Lock()
		for _, entry := range env.Roster {
			c.authorities[entry.Entity] = entry.Authority
		}
		c.mu.Unlock()
	case proto.TypeDespawn:
		c.mu.Lock()
		delete(c.authorities, env.Entity)
		c.mu.Unlock()
		c.inbox.Push(env)
	case proto.TypeSnapshot, proto.TypeCommand:
		c.inbox.Push(env)
	}
}

func (c *Client) heartbeatPump() {
	defer c.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			env := proto.Envelope{
				Type:   proto.TypeHeartbeat,
				From:   c.cfg.Participant,
				SentAt: now.UnixMilli(),
			}
			if err := c.send(env); err != nil {
				c.logger.Printf("relayws: heartbeat failed: %v", err)
				return
			}
		}
	}
}

func (c *Client) send(env proto.Envelope) error {
	if env.From == "" {
		env.From = c.cfg.Participant
	}
	data, err := proto.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	packed := proto.PackMessage(c.enc, data, c.cfg.CompressAbove)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, packed); err != nil {
		return fmt.Errorf("relayws: write %s: %w", env.Type, err)
	}
	return nil
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) teardown() {
	c.enc.Close()
	c.dec.Close()
	c.conn.Close()
}

// Close shuts the connection down and waits for the pumps to exit.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	close(c.done)
	c.markDisconnected()
	err := c.conn.Close()
	c.wg.Wait()
	c.enc.Close()
	c.dec.Close()
	return err
}

// LocalID identifies this participant.
func (c *Client) LocalID() proto.ParticipantID {
	return c.cfg.Participant
}

// Connected reports whether the relay handshake completed and the
// connection is still up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// AuthorityOf consults the locally mirrored roster.
func (c *Client) AuthorityOf(id proto.EntityID) (proto.ParticipantID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.authorities[id]
	return owner, ok
}

// Claim announces this participant as the entity's authority. The local
// roster updates immediately so the spawning code can resolve its own role
// before the relay echoes the claim.
func (c *Client) Claim(id proto.EntityID) error {
	c.mu.Lock()
	c.authorities[id] = c.cfg.Participant
	c.mu.Unlock()
	return c.send(proto.Envelope{Type: proto.TypeClaim, Entity: id})
}

// Channel returns the entity's snapshot channel, creating it on first use.
func (c *Client) Channel(id proto.EntityID) *transport.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	if !ok {
		ch = transport.NewChannel(id)
		c.channels[id] = ch
	}
	return ch
}

// SendSnapshot broadcasts a snapshot frame through the relay.
func (c *Client) SendSnapshot(id proto.EntityID, frame []byte) error {
	return c.send(proto.Envelope{
		Type:    proto.TypeSnapshot,
		Entity:  id,
		Channel: proto.ChannelAddress(id),
		Frame:   frame,
	})
}

// SendCommand routes a command request to one participant via the relay.
func (c *Client) SendCommand(to proto.ParticipantID, id proto.EntityID, req proto.CommandRequest) error {
	return c.send(proto.Envelope{
		Type:    proto.TypeCommand,
		To:      to,
		Entity:  id,
		Command: &req,
	})
}

// SendDespawn broadcasts an authority-issued teardown through the relay.
func (c *Client) SendDespawn(id proto.EntityID) error {
	c.mu.Lock()
	delete(c.authorities, id)
	c.mu.Unlock()
	return c.send(proto.Envelope{Type: proto.TypeDespawn, Entity: id})
}

// Poll drains queued messages and hands them to the handler in arrival
// order.
func (c *Client) Poll(h transport.Handler) {
	if h == nil {
		return
	}
	for _, env := range c.inbox.Drain() {
		switch env.Type {
		case proto.TypeSnapshot:
			h.HandleSnapshot(env.Entity, env.Frame)
		case proto.TypeCommand:
			if env.Command != nil {
				h.HandleCommand(env.Entity, *env.Command)
			}
		case proto.TypeDespawn:
			h.HandleDespawn(env.Entity)
		}
	}
}
