package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type StoreKind string

const (
	StoreFirestore StoreKind = "firestore"
	StoreMemory    StoreKind = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreKind       `yaml:"store"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Line      LineConfig      `yaml:"line"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type FirestoreConfig struct {
	ProjectID string `yaml:"project_id"`
}

type LineConfig struct {
	ChannelToken  string `yaml:"channel_token"`
	ChannelSecret string `yaml:"channel_secret"`
}

// Enabled reports whether the LINE webhook and pushes are configured.
func (l LineConfig) Enabled() bool {
	return l.ChannelToken != "" && l.ChannelSecret != ""
}

type CalendarConfig struct {
	MaxVisiblePerCell     int           `yaml:"max_visible_per_cell"`
	AutoScrollThresholdPx float64       `yaml:"autoscroll_threshold_px"`
	AutoScrollStepPx      int           `yaml:"autoscroll_step_px"`
	AutoScrollTick        time.Duration `yaml:"autoscroll_tick"`
	ToastTTL              time.Duration `yaml:"toast_ttl"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
}

// Load builds the configuration from defaults, then .env, then the YAML
// file at path (if any, with ${VAR} expansion), then environment overrides.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreFirestore,
		Calendar: CalendarConfig{
			MaxVisiblePerCell:     4,
			AutoScrollThresholdPx: 100,
			AutoScrollStepPx:      10,
			AutoScrollTick:        16 * time.Millisecond,
			ToastTTL:              4 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout: 30 * time.Minute,
		},
	}
}

// loadDotEnv reads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is fine.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) {
	// PORT is what Cloud Run sets; CREWCAL_PORT wins over it.
	for _, key := range []string{"PORT", "CREWCAL_PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Server.Port = port
			}
		}
	}
	if v := os.Getenv("CREWCAL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		cfg.Firestore.ProjectID = v
	}
	if v := os.Getenv("LINE_CHANNEL_TOKEN"); v != "" {
		cfg.Line.ChannelToken = v
	}
	if v := os.Getenv("LINE_CHANNEL_SECRET"); v != "" {
		cfg.Line.ChannelSecret = v
	}
	if v := os.Getenv("CREWCAL_STORE"); v != "" {
		cfg.Store = StoreKind(v)
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("GOOGLE_CLOUD_PROJECT (firestore.project_id) is required for the firestore store")
		}
	default:
		return fmt.Errorf("unknown store %q: want firestore or memory", c.Store)
	}
	if c.Calendar.MaxVisiblePerCell <= 0 {
		return errors.New("calendar.max_visible_per_cell must be positive")
	}
	if c.Calendar.AutoScrollTick <= 0 {
		return errors.New("calendar.autoscroll_tick must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
