package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/angelware-net/spectre/internal/util"
)

type Config struct {
	API      API      `json:"api"`
	Pipeline Pipeline `json:"pipeline"`
	Loader   Loader   `json:"loader"`
	Cache    Cache    `json:"cache"`
	Overlay  Overlay  `json:"overlay"`
	GameLog  GameLog  `json:"gamelog"`
}

type API struct {
	BaseURL    string `json:"base_url"`
	UserAgent  string `json:"user_agent"`
	TimeoutSec int    `json:"timeout_seconds"`
}

type Pipeline struct {
	URL string `json:"url"`

	// Heartbeat tick interval; each tick either checks staleness or sends a ping.
	HeartbeatSec int `json:"heartbeat_seconds"`

	// If no inbound frame arrives within this window the session is declared
	// stale, a snapshot resync runs, and the connection is rebuilt.
	StaleSec int `json:"stale_seconds"`

	// Reconnect backoff: min(base * 2^attempt, cap) + jitter.
	BackoffBaseSec int `json:"backoff_base_seconds"`
	BackoffCapSec  int `json:"backoff_cap_seconds"`
}

type Loader struct {
	BatchSize    int `json:"batch_size"`
	BatchDelayMs int `json:"batch_delay_ms"`
}

type Cache struct {
	Dir       string `json:"dir"`
	MaxSizeMB int    `json:"max_size_mb"`
}

type Overlay struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type GameLog struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

func Default() Config {
	return Config{
		API: API{
			BaseURL:    "https://api.vrchat.cloud/api/1",
			UserAgent:  "Spectre/2.0",
			TimeoutSec: 10,
		},
		Pipeline: Pipeline{
			URL:            "wss://pipeline.vrchat.cloud/",
			HeartbeatSec:   10,
			StaleSec:       30,
			BackoffBaseSec: 1,
			BackoffCapSec:  60,
		},
		Loader: Loader{
			BatchSize:    150,
			BatchDelayMs: 10,
		},
		Cache: Cache{
			Dir:       "cache",
			MaxSizeMB: 512,
		},
		Overlay: Overlay{
			Host: "127.0.0.1",
			Port: 42069,
		},
		GameLog: GameLog{
			Enabled: false,
			Dir:     "",
		},
	}
}

func (c *Config) Validate() error {
	// API
	if err := validateHTTPURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if strings.TrimSpace(c.API.UserAgent) == "" {
		return errors.New("api.user_agent is required")
	}
	if c.API.TimeoutSec <= 0 {
		return errors.New("api.timeout_seconds must be > 0")
	}

	// Pipeline
	u, err := url.Parse(c.Pipeline.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return errors.New("pipeline.url must be a ws:// or wss:// URL")
	}
	if c.Pipeline.HeartbeatSec <= 0 {
		return errors.New("pipeline.heartbeat_seconds must be > 0")
	}
	if c.Pipeline.StaleSec <= 0 {
		return errors.New("pipeline.stale_seconds must be > 0")
	}
	if c.Pipeline.HeartbeatSec >= c.Pipeline.StaleSec {
		return errors.New("pipeline.heartbeat_seconds must be < pipeline.stale_seconds")
	}
	if c.Pipeline.BackoffBaseSec <= 0 {
		return errors.New("pipeline.backoff_base_seconds must be > 0")
	}
	if c.Pipeline.BackoffCapSec < c.Pipeline.BackoffBaseSec {
		return errors.New("pipeline.backoff_cap_seconds must be >= backoff_base_seconds")
	}

	// Loader
	if c.Loader.BatchSize <= 0 {
		return errors.New("loader.batch_size must be > 0")
	}
	if c.Loader.BatchDelayMs < 0 {
		return errors.New("loader.batch_delay_ms must be >= 0")
	}

	// Cache
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("cache.dir is required")
	}
	if c.Cache.MaxSizeMB <= 0 {
		return errors.New("cache.max_size_mb must be > 0")
	}

	// Overlay
	if c.Overlay.Port <= 0 || c.Overlay.Port > 65535 {
		return errors.New("overlay.port must be 1..65535")
	}

	// GameLog
	if c.GameLog.Enabled && strings.TrimSpace(c.GameLog.Dir) == "" {
		return errors.New("gamelog.dir is required when gamelog is enabled")
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
