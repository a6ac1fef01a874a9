package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	replication "gravewatch/replication"
	"gravewatch/replication/internal/proto"
	"gravewatch/replication/internal/telemetry"
	"gravewatch/replication/internal/transport/memory"
	"gravewatch/replication/internal/transport/relayws"
	"gravewatch/replication/logging"
	"gravewatch/replication/logging/sinks"
)

func main() {
	configPath := flag.String("config", "", "path to arena config yaml")
	relayURL := flag.String("relay", "", "relay websocket URL (overrides config)")
	flag.Parse()

	cfg, err := loadArenaConfig(*configPath)
	if err != nil {
		log.Fatalf("arena: %v", err)
	}
	if *relayURL != "" {
		cfg.Relay = *relayURL
	}

	logger := log.New(os.Stdout, "arena ", log.LstdFlags|log.Lmsgprefix)
	metrics := telemetry.NewCounters()

	router := logging.NewRouter(
		logging.ClockFunc(time.Now),
		logging.DefaultConfig(),
		sinks.NewConsoleSink(os.Stdout),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		router.Close(ctx)
	}()

	transport, cleanup, err := buildTransport(cfg, logger)
	if err != nil {
		log.Fatalf("arena: %v", err)
	}
	defer cleanup()

	watch := newWatchList(cfg.watchIDs())
	var session *replication.Session
	hooks := replication.TickHooks{
		PostTick: func(tick uint64) {
			watch.adopt(session)
			if cfg.StatsEvery > 0 && tick%cfg.StatsEvery == 0 {
				printStats(logger, session, metrics, tick)
			}
		},
	}

	session, err = replication.NewSession(transport, cfg.Replication, replication.Deps{
		Publisher: router,
		Logger:    telemetry.WrapLogger(logger),
		Metrics:   metrics,
	}, hooks)
	if err != nil {
		log.Fatalf("arena: %v", err)
	}

	for i := 0; i < cfg.Spawn; i++ {
		id := proto.EntityID(fmt.Sprintf("%s-wanderer-%d", cfg.Participant, i))
		home := mgl32.Vec3{float32(i) * 6, 0, 0}
		_, err := session.SpawnOwned(replication.EntityConfig{
			ID:        id,
			Position:  home,
			Rotation:  mgl32.QuatIdent(),
			MaxHealth: 100,
			Behavior:  newWanderer(home, nil, time.Now().UnixNano()+int64(i)),
			Mover:     &trackingMover{},
		})
		if err != nil {
			log.Fatalf("arena: spawn %s: %v", id, err)
		}
	}
	logger.Printf("running as %s with %d wanderers, watching %d entities",
		cfg.Participant, cfg.Spawn, len(cfg.Watch))

	tickRate := cfg.Replication.TickRate
	if tickRate <= 0 {
		tickRate = replication.DefaultConfig().TickRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case now := <-ticker.C:
			session.Tick(now)
		case sig := <-sigs:
			logger.Printf("shutting down on %s", sig)
			return
		}
	}
}

func buildTransport(cfg arenaConfig, logger *log.Logger) (replication.Transport, func(), error) {
	if cfg.Relay == "" {
		logger.Printf("no relay configured, running solo")
		return memory.NewSolo(proto.ParticipantID(cfg.Participant)), func() {}, nil
	}
	client, err := relayws.Dial(relayws.Config{
		URL:         cfg.Relay,
		Participant: proto.ParticipantID(cfg.Participant),
		Logger:      telemetry.WrapLogger(logger),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial relay: %w", err)
	}
	return client, func() { client.Close() }, nil
}

// watchList lazily spawns replica mirrors for entities once some other
// participant has claimed authority over them.
type watchList struct {
	pending map[proto.EntityID]struct{}
}

func newWatchList(ids []proto.EntityID) *watchList {
	pending := make(map[proto.EntityID]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	return &watchList{pending: pending}
}

func (w *watchList) adopt(session *replication.Session) {
	if session == nil || len(w.pending) == 0 {
		return
	}
	for id := range w.pending {
		if _, ok := session.Transport().AuthorityOf(id); !ok {
			continue
		}
		_, err := session.Spawn(replication.EntityConfig{
			ID:        id,
			Rotation:  mgl32.QuatIdent(),
			MaxHealth: 100,
			Mover:     &trackingMover{},
		})
		if err == nil {
			delete(w.pending, id)
		}
	}
}

func printStats(logger *log.Logger, session *replication.Session, metrics *telemetry.Counters, tick uint64) {
	logger.Printf("tick=%d entities=%d snapshots_sent=%d snapshots_received=%d snaps=%d",
		tick,
		session.Len(),
		metrics.Value("replication_snapshots_sent_total"),
		metrics.Value("replication_snapshots_received_total"),
		metrics.Value("replication_snapshot_snaps_total"),
	)
}
