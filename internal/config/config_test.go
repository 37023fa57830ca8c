package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	result := Validate(DefaultConfig())
	assert.True(t, result.IsValid(), "%v", result.Errors)
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Client.ProcessInitialData)
	assert.Equal(t, 1000, cfg.Client.RequestPollingIntervalMs)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadOverlaysJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client":{"request_polling_interval_ms":2500,"skip_message_types":["WebcastLikeMessage"]}}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.Client.RequestPollingIntervalMs)
	assert.True(t, cfg.Client.EnableWebsocketUpgrade, "unset fields keep defaults")
	assert.Equal(t, map[string]bool{"WebcastLikeMessage": true}, cfg.Client.SkipSet())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamtap.yaml")
	data := []byte("client:\n  handshake_timeout_sec: 5\nsigner:\n  custom_host: https://sign.local/\n  fallback_hosts:\n    - https://sign.local\n    - https://backup.local\n")
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Client.HandshakeTimeoutSec)
	assert.Equal(t,
		[]string{"https://sign.local", "https://tiktok.eulerstream.com", "https://backup.local"},
		cfg.Signer.Hosts())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvSessionID, "sess")
	t.Setenv(EnvTTTargetIDC, "useast5")
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sess", cfg.GetClient().SessionID)
	assert.Equal(t, "useast5", cfg.GetClient().TTTargetIDC)
}

func TestValidateSessionWithoutIDC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.SessionID = "abc"
	result := Validate(cfg)
	require.False(t, result.IsValid())
	assert.Equal(t, "client.tt_target_idc", result.Errors[0].Field)
}

func TestValidatePollingInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.RequestPollingIntervalMs = 10
	assert.False(t, Validate(cfg).IsValid())

	cfg.Client.RequestPollingIntervalMs = 200
	result := Validate(cfg)
	assert.True(t, result.IsValid())
	assert.NotEmpty(t, result.Warnings)
}
