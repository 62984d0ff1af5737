package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Guard.WarnThreshold)
	assert.Equal(t, 5, cfg.Guard.EscalateThreshold)
	assert.Equal(t, 10, cfg.Guard.CriticalThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Guard.Window)
	assert.Equal(t, 24*time.Hour, cfg.Guard.OriginTTL)
	assert.Equal(t, time.Hour, cfg.Breach.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Breach.Timeout)
	assert.Equal(t, "none", cfg.Alert.Broker.Driver)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
store:
  driver: redis
guard:
  window: 30m
alert:
  email:
    enabled: true
    host: smtp.example.com
    to: [ops@example.com]
`)
	t.Setenv("RISK_GUARD_WARN_THRESHOLD", "2")
	t.Setenv("RISK_JWT_SECRET", "from-env")
	t.Setenv("RISK_SMTP_PASSWORD", "smtp-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Guard.Window)
	assert.Equal(t, 2, cfg.Guard.WarnThreshold)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "smtp-secret", cfg.Alert.Email.Password)
	assert.Equal(t, []string{"ops@example.com"}, cfg.Alert.Email.To)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "unknown store driver",
			body:   "store:\n  driver: etcd\n",
			errMsg: "store.driver",
		},
		{
			name:   "thresholds out of order",
			body:   "guard:\n  warn_threshold: 5\n  escalate_threshold: 5\n",
			errMsg: "guard thresholds",
		},
		{
			name:   "email without recipients",
			body:   "alert:\n  email:\n    enabled: true\n    host: smtp.example.com\n",
			errMsg: "alert.email",
		},
		{
			name:   "unknown broker",
			body:   "alert:\n  broker:\n    driver: kafka\n",
			errMsg: "alert.broker.driver",
		},
		{
			name:   "database cleanup interval not positive",
			body:   "database:\n  enabled: true\n  cleanup_interval: 0s\n",
			errMsg: "database.cleanup_interval",
		},
		{
			name:   "broker dial timeout not positive",
			body:   "alert:\n  broker:\n    driver: redis\n    dial_timeout: 0s\n",
			errMsg: "alert.broker.dial_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
