package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DEBUG", "LOG_FORMAT", "TRANSFORM", "BIND_ADDR", "PORT",
		"STATUS_INTERVAL", "SHUTDOWN_TIMEOUT", "HEALTH_ENABLED", "HEALTH_SERVER_PORT",
		"NAMESPACE", "POD_NAMESPACE", "KUBECONFIG", "KUBE_CONTEXT",
		"TLS_ENABLED", "TLS_MODE", "TLS_CERT_FILE", "TLS_KEY_FILE", "TLS_SECRET_NAME", "TLS_AUTO_GENERATE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ":6666", cfg.ListenAddr())
	assert.Equal(t, "echo", cfg.Transform)
	assert.Equal(t, 5*time.Second, cfg.StatusInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.HealthEnabled)
	assert.Equal(t, "8080", cfg.HealthServerPort)
	assert.False(t, cfg.TLSEnabled)
	assert.Equal(t, TLSModeMemory, cfg.TLSMode)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("BIND_ADDR", "127.0.0.1")
	t.Setenv("TRANSFORM", "UPPER")
	t.Setenv("STATUS_INTERVAL", "250ms")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")
	t.Setenv("HEALTH_ENABLED", "false")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr())
	assert.Equal(t, "upper", cfg.Transform)
	assert.Equal(t, 250*time.Millisecond, cfg.StatusInterval)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.HealthEnabled)
}

func TestLoadPortArgument(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	cfg, err := Load([]string{"9001"})
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)

	cfg, err = Load([]string{""})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port, "empty argument falls back to the environment")

	_, err = Load([]string{"not-a-port"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "port too large", args: []string{"70000"}},
		{name: "port zero", env: map[string]string{"PORT": "0"}},
		{name: "file tls without files", env: map[string]string{"TLS_ENABLED": "true", "TLS_MODE": "file"}},
		{name: "secret tls without name", env: map[string]string{"TLS_ENABLED": "true", "TLS_MODE": "k8s"}},
		{name: "negative interval", env: map[string]string{"STATUS_INTERVAL": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestDetermineTLSMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("TLS_CERT_FILE", "/etc/tls/tls.crt")
	assert.Equal(t, TLSModeFile, determineTLSMode())

	clearEnv(t)
	t.Setenv("TLS_SECRET_NAME", "xtransform-tls")
	assert.Equal(t, TLSModeKubernetes, determineTLSMode())

	t.Setenv("TLS_MODE", "in-memory")
	assert.Equal(t, TLSModeMemory, determineTLSMode())
}
