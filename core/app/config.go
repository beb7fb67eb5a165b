package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ACTORRT"

var ErrInvalidConfig = errors.New("invalid config")

// Config is the file configuration of a runtime.
//
//	id: api-1
//	log_level: info
//	threads:
//	  count: 4
//	max_concurrent_ops: 64
//	pulse_interval: 10ms
//	placement_seed: prod
type Config struct {
	ID               string        `yaml:"id"`
	LogLevel         string        `yaml:"log_level"`
	Threads          ThreadsConfig `yaml:"threads"`
	MaxConcurrentOps int           `yaml:"max_concurrent_ops"`
	PulseInterval    time.Duration `yaml:"pulse_interval"`
	PlacementSeed    string        `yaml:"placement_seed"`
}

// ThreadsConfig lists the pooled threads to create. Names wins over Count.
type ThreadsConfig struct {
	Count  int      `yaml:"count"`
	Prefix string   `yaml:"prefix"`
	Names  []string `yaml:"names"`
}

// DefaultConfig returns one pooled thread per CPU named T1..Tn.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Threads: ThreadsConfig{
			Count:  runtime.NumCPU(),
			Prefix: "T",
		},
		MaxConcurrentOps: 64,
	}
}

// ThreadNames returns the names of the pooled threads to create.
func (c *Config) ThreadNames() []string {
	if len(c.Threads.Names) > 0 {
		return c.Threads.Names
	}
	names := make([]string, c.Threads.Count)
	for i := range names {
		names[i] = c.Threads.Prefix + strconv.Itoa(i+1)
	}
	return names
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return l, nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if len(c.Threads.Names) == 0 && c.Threads.Count < 1 {
		return fmt.Errorf("%w: need at least one thread", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, n := range c.ThreadNames() {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: empty thread name", ErrInvalidConfig)
		}
		if seen[n] {
			return fmt.Errorf("%w: duplicate thread name %q", ErrInvalidConfig, n)
		}
		seen[n] = true
	}
	if c.PulseInterval < 0 {
		return fmt.Errorf("%w: negative pulse_interval", ErrInvalidConfig)
	}
	return nil
}

// ParseConfig decodes YAML on top of DefaultConfig. Unknown keys are errors.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads path (defaults only if path is empty), applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = ParseConfig(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPrefix + "_ID"); v != "" {
		c.ID = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s_THREADS: %w", EnvPrefix, err)
		}
		c.Threads.Count = n
		c.Threads.Names = nil
	}
	if v := os.Getenv(EnvPrefix + "_MAX_CONCURRENT_OPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s_MAX_CONCURRENT_OPS: %w", EnvPrefix, err)
		}
		c.MaxConcurrentOps = n
	}
	if v := os.Getenv(EnvPrefix + "_PULSE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s_PULSE_INTERVAL: %w", EnvPrefix, err)
		}
		c.PulseInterval = d
	}
	return nil
}
