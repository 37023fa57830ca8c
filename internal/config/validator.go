package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateClient(&cfg.Client, result)
	validateSigner(&cfg.Signer, result)

	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.BrokerURL) == "" {
			result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		validatePort(cfg.MQTT.Port, "mqtt.port", result)
	}

	if cfg.Redis.Enabled {
		if _, err := url.Parse(cfg.Redis.URL); err != nil || cfg.Redis.URL == "" {
			result.AddError("redis.url", "a valid redis:// URL is required when enabled")
		}
		if strings.TrimSpace(cfg.Redis.Channel) == "" {
			result.AddError("redis.channel", "channel is required when enabled")
		}
	}

	if cfg.Storage.Enabled {
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			result.AddError("storage.path", "database path is required when enabled")
		}
		if cfg.Storage.RetentionHours < 1 {
			result.AddWarning("storage.retention_hours", "retention disabled, recorded events are never pruned")
		}
	}

	if cfg.API.Enabled {
		validatePort(cfg.API.Port, "api.port", result)
		if cfg.API.Token == "" && cfg.API.Address != "127.0.0.1" && cfg.API.Address != "localhost" {
			result.AddWarning("api.token", "API is exposed beyond loopback without a token")
		}
	}

	return result
}

func validateClient(c *ClientConfig, result *ValidationResult) {
	if c.RequestPollingIntervalMs < 100 {
		result.AddError("client.request_polling_interval_ms", "polling interval must be at least 100ms")
	} else if c.RequestPollingIntervalMs < 500 {
		result.AddWarning("client.request_polling_interval_ms",
			"polling interval below 500ms may trigger upstream rate limiting")
	}

	if c.HandshakeTimeoutSec < 1 {
		result.AddError("client.handshake_timeout_sec", "handshake timeout must be at least 1 second")
	}
	if c.HeartbeatIntervalSec < 1 {
		result.AddError("client.heartbeat_interval_sec", "heartbeat interval must be at least 1 second")
	}

	if c.SessionID != "" && c.TTTargetIDC == "" {
		result.AddError("client.tt_target_idc", "tt_target_idc is required when session_id is set")
	}

	if !c.EnableWebsocketUpgrade && c.SessionID == "" {
		result.AddWarning("client.enable_websocket_upgrade",
			"websocket upgrade disabled without a session id, polling will be refused")
	}

	for field, raw := range map[string]string{
		"client.web_base_url":     c.WebBaseURL,
		"client.webcast_base_url": c.WebcastBaseURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			result.AddError(field, fmt.Sprintf("invalid base URL: %q", raw))
		}
	}
}

func validateSigner(s *SignerConfig, result *ValidationResult) {
	hosts := s.Hosts()
	if len(hosts) == 0 {
		result.AddError("signer.primary_host", "at least one signing host is required")
	}
	for _, h := range hosts {
		if u, err := url.Parse(h); err != nil || u.Scheme == "" {
			result.AddError("signer.hosts", fmt.Sprintf("invalid signing host: %q", h))
		}
	}
	if s.TimeoutSec < 1 {
		result.AddError("signer.timeout_sec", "signing timeout must be at least 1 second")
	}
	if s.APIKey == "" {
		result.AddWarning("signer.api_key", "no API key configured, signing requests are subject to anonymous limits")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
