package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerSpec  `yaml:"server"`
	Options  OptionsSpec `yaml:"options"`
	DataDir  string      `yaml:"data_dir"`
	Offline  bool        `yaml:"offline"`
	LogLevel string      `yaml:"log_level,omitempty"`
}

type ServerSpec struct {
	Address  string `yaml:"address"`
	SlotName string `yaml:"slot_name"`
	Password string `yaml:"password,omitempty"`
}

type OptionsSpec struct {
	DeathLink            bool   `yaml:"death_link"`
	RandomizePurpleSigils bool  `yaml:"randomize_purple_sigils"`
	RandomizeStars       bool   `yaml:"randomize_stars"`
	ReusableTetrominos   bool   `yaml:"reusable_tetrominos"`
	TransitionCooldownMS int    `yaml:"transition_cooldown_ms"`
	GoalWarmupMS         int    `yaml:"goal_warmup_ms"`
	TickIntervalMS       int    `yaml:"tick_interval_ms"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("bridge.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("bridge.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerSpec{
			Address: "localhost:38281",
		},
		Options: OptionsSpec{
			TransitionCooldownMS: 3000,
			GoalWarmupMS:         20000,
			TickIntervalMS:       200,
		},
		DataDir: "data",
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Server.Address = strings.TrimSpace(c.Server.Address)
	c.Server.SlotName = strings.TrimSpace(c.Server.SlotName)
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Options.TransitionCooldownMS <= 0 {
		c.Options.TransitionCooldownMS = 3000
	}
	if c.Options.GoalWarmupMS <= 0 {
		c.Options.GoalWarmupMS = 20000
	}
	if c.Options.TickIntervalMS <= 0 {
		c.Options.TickIntervalMS = 200
	}
}

func (c Config) Validate() error {
	if !c.Offline {
		if c.Server.Address == "" {
			return fmt.Errorf("server.address must not be empty")
		}
		if c.Server.SlotName == "" {
			return fmt.Errorf("server.slot_name must not be empty")
		}
	}
	if c.Options.TickIntervalMS > c.Options.GoalWarmupMS {
		return fmt.Errorf("tick_interval_ms must not exceed goal_warmup_ms")
	}
	return nil
}

func (c Config) TransitionCooldown() time.Duration {
	return time.Duration(c.Options.TransitionCooldownMS) * time.Millisecond
}

func (c Config) GoalWarmup() time.Duration {
	return time.Duration(c.Options.GoalWarmupMS) * time.Millisecond
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Options.TickIntervalMS) * time.Millisecond
}
