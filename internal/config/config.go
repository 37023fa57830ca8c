// Package config handles configuration loading, validation, and persistence
// for the streamtap client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5000
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Environment overrides applied after the file is read.
const (
	EnvSessionID   = "STREAMTAP_SESSION_ID"
	EnvTTTargetIDC = "STREAMTAP_TT_TARGET_IDC"
	EnvSignAPIKey  = "STREAMTAP_SIGN_API_KEY"
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Client    ClientConfig    `json:"client" yaml:"client"`
	Signer    SignerConfig    `json:"signer" yaml:"signer"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	MQTT      MQTTConfig      `json:"mqtt" yaml:"mqtt"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	API       APIConfig       `json:"api" yaml:"api"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
}

// ClientConfig holds the connection options.
type ClientConfig struct {
	ProcessInitialData       bool `json:"process_initial_data" yaml:"process_initial_data"`
	FetchRoomInfoOnConnect   bool `json:"fetch_room_info_on_connect" yaml:"fetch_room_info_on_connect"`
	EnableExtendedGiftInfo   bool `json:"enable_extended_gift_info" yaml:"enable_extended_gift_info"`
	EnableWebsocketUpgrade   bool `json:"enable_websocket_upgrade" yaml:"enable_websocket_upgrade"`
	RequestPollingIntervalMs int  `json:"request_polling_interval_ms" yaml:"request_polling_interval_ms"`
	ConnectWithUniqueID      bool `json:"connect_with_unique_id" yaml:"connect_with_unique_id"`
	HandshakeTimeoutSec      int  `json:"handshake_timeout_sec" yaml:"handshake_timeout_sec"`
	HeartbeatIntervalSec     int  `json:"heartbeat_interval_sec" yaml:"heartbeat_interval_sec"`

	// Session credentials
	SessionID   string `json:"session_id" yaml:"session_id"`
	TTTargetIDC string `json:"tt_target_idc" yaml:"tt_target_idc"`

	SkipMessageTypes []string          `json:"skip_message_types" yaml:"skip_message_types"`
	ClientParams     map[string]string `json:"client_params" yaml:"client_params"`
	RequestHeaders   map[string]string `json:"request_headers" yaml:"request_headers"`
	UserAgent        string            `json:"user_agent" yaml:"user_agent"`

	// Upstream
	WebBaseURL     string `json:"web_base_url" yaml:"web_base_url"`
	WebcastBaseURL string `json:"webcast_base_url" yaml:"webcast_base_url"`
}

// PollingInterval returns the pause between polling fetches.
func (c ClientConfig) PollingInterval() time.Duration {
	return time.Duration(c.RequestPollingIntervalMs) * time.Millisecond
}

// HandshakeTimeout bounds the bring-up handshake.
func (c ClientConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSec) * time.Second
}

// HeartbeatInterval returns the push keep-alive period.
func (c ClientConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

// SkipSet returns the skip list as a lookup set.
func (c ClientConfig) SkipSet() map[string]bool {
	if len(c.SkipMessageTypes) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.SkipMessageTypes))
	for _, t := range c.SkipMessageTypes {
		set[t] = true
	}
	return set
}

// SignerConfig holds the signing service settings.
type SignerConfig struct {
	CustomHost          string   `json:"custom_host" yaml:"custom_host"`
	PrimaryHost         string   `json:"primary_host" yaml:"primary_host"`
	FallbackHosts       []string `json:"fallback_hosts" yaml:"fallback_hosts"`
	APIKey              string   `json:"api_key" yaml:"api_key"`
	TimeoutSec          int      `json:"timeout_sec" yaml:"timeout_sec"`
	ConnectingWindowMin int      `json:"connecting_window_min" yaml:"connecting_window_min"`
}

// Hosts returns the signing hosts in attempt order without duplicates.
func (s SignerConfig) Hosts() []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, h := range append([]string{s.CustomHost, s.PrimaryHost}, s.FallbackHosts...) {
		h = strings.TrimRight(strings.TrimSpace(h), "/")
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

// Timeout returns the per-request signing timeout.
func (s SignerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// ConnectingWindow returns how long a bring-up holds its unique id.
func (s SignerConfig) ConnectingWindow() time.Duration {
	return time.Duration(s.ConnectingWindowMin) * time.Minute
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Directory  string `json:"directory" yaml:"directory"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

// MQTTConfig holds MQTT forwarding settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	BrokerURL   string `json:"broker_url" yaml:"broker_url"`
	Port        int    `json:"port" yaml:"port"`
	UseTLS      bool   `json:"use_tls" yaml:"use_tls"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
}

// RedisConfig holds Redis pub/sub forwarding settings.
type RedisConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	URL              string `json:"url" yaml:"url"`
	Channel          string `json:"channel" yaml:"channel"`
	PublishTimeoutMs int    `json:"publish_timeout_ms" yaml:"publish_timeout_ms"`
}

// StorageConfig holds event recording settings.
type StorageConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Path           string `json:"path" yaml:"path"`
	RetentionHours int    `json:"retention_hours" yaml:"retention_hours"`
}

// Retention returns how long recorded events are kept.
func (s StorageConfig) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Address        string   `json:"address" yaml:"address"`
	Port           int      `json:"port" yaml:"port"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	Token          string   `json:"token" yaml:"token"`
	EnableMetrics  bool     `json:"enable_metrics" yaml:"enable_metrics"`
	RateLimitRPS   int      `json:"rate_limit_rps" yaml:"rate_limit_rps"`
}

// SchedulerConfig holds background task intervals.
type SchedulerConfig struct {
	PruneIntervalSec    int `json:"prune_interval_sec" yaml:"prune_interval_sec"`
	StatsLogIntervalSec int `json:"stats_log_interval_sec" yaml:"stats_log_interval_sec"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ProcessInitialData:       true,
			FetchRoomInfoOnConnect:   true,
			EnableExtendedGiftInfo:   false,
			EnableWebsocketUpgrade:   true,
			RequestPollingIntervalMs: 1000,
			HandshakeTimeoutSec:      30,
			HeartbeatIntervalSec:     10,
			UserAgent:                DefaultUserAgent,
			WebBaseURL:               "https://www.tiktok.com",
			WebcastBaseURL:           "https://webcast.tiktok.com/webcast",
		},
		Signer: SignerConfig{
			PrimaryHost:         "https://tiktok.eulerstream.com",
			TimeoutSec:          10,
			ConnectingWindowMin: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 5,
		},
		MQTT: MQTTConfig{
			BrokerURL:   "localhost",
			Port:        1883,
			TopicPrefix: "streamtap",
		},
		Redis: RedisConfig{
			URL:              "redis://localhost:6379/0",
			Channel:          "streamtap:events",
			PublishTimeoutMs: 2000,
		},
		Storage: StorageConfig{
			Path:           filepath.Join("data", "streamtap.db"),
			RetentionHours: 72,
		},
		API: APIConfig{
			Address:       "127.0.0.1",
			Port:          DefaultAPIPort,
			EnableMetrics: true,
			RateLimitRPS:  20,
		},
		Scheduler: SchedulerConfig{
			PruneIntervalSec:    3600,
			StatsLogIntervalSec: 300,
		},
	}
}

// Load reads configuration from a JSON or YAML file, chosen by extension.
// A missing file is created with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = path
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := cfg.unmarshal(data, path); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.path = path
	cfg.applyEnv()
	log.Info().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Config) unmarshal(data []byte, path string) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, c)
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSessionID); v != "" {
		c.Client.SessionID = v
	}
	if v := os.Getenv(EnvTTTargetIDC); v != "" {
		c.Client.TTTargetIDC = v
	}
	if v := os.Getenv(EnvSignAPIKey); v != "" {
		c.Signer.APIKey = v
	}
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(c.path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetClient returns a copy of the client configuration.
func (c *Config) GetClient() ClientConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Client
}

// SetSession updates the session credentials.
func (c *Config) SetSession(sessionID, ttTargetIDC string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Client.SessionID = sessionID
	c.Client.TTTargetIDC = ttTargetIDC
}

// GetSigner returns a copy of the signer configuration.
func (c *Config) GetSigner() SignerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Signer
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
