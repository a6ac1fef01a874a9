package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	replication "gravewatch/replication"
	"gravewatch/replication/internal/proto"
)

type arenaConfig struct {
	// Relay is the websocket relay endpoint. Empty runs solo.
	Relay string `yaml:"relay"`
	// Participant identifies this process in the room.
	Participant string `yaml:"participant"`
	// Spawn is how many wanderers this participant owns.
	Spawn int `yaml:"spawn"`
	// Watch lists entity ids to mirror as replicas once another
	// participant has claimed them.
	Watch []string `yaml:"watch"`
	// StatsEvery prints counters every N ticks; zero disables.
	StatsEvery uint64 `yaml:"stats_every"`

	Replication replication.Config `yaml:"replication"`
}

func defaultArenaConfig() arenaConfig {
	return arenaConfig{
		Participant: fmt.Sprintf("arena-%d", os.Getpid()),
		Spawn:       3,
		StatsEvery:  200,
		Replication: replication.DefaultConfig(),
	}
}

func loadArenaConfig(path string) (arenaConfig, error) {
	cfg := defaultArenaConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Participant == "" {
		cfg.Participant = defaultArenaConfig().Participant
	}
	return cfg, nil
}

func (c arenaConfig) watchIDs() []proto.EntityID {
	ids := make([]proto.EntityID, 0, len(c.Watch))
	for _, raw := range c.Watch {
		if raw != "" {
			ids = append(ids, proto.EntityID(raw))
		}
	}
	return ids
}
