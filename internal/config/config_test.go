package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "trade-journal/internal/errors"
)

func TestLoad_CreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.Empty(t, cfg.File)

	assert.Equal(t, "trading_journal.db", cfg.Database.Path)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Backup.Keep)
	assert.Equal(t, int64(1), cfg.Journal.DefaultUserID)
	assert.Equal(t, 3*time.Second, cfg.Screenshots.RenderWait)
	assert.Equal(t, 1, cfg.Screenshots.CaptureRetries)
	assert.Equal(t, 3, cfg.Screenshots.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.Screenshots.BreakerCooldown)

	// The template itself must load cleanly.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, again.File)
	assert.Equal(t, cfg.Database, again.Database)
	assert.Equal(t, cfg.Journal, again.Journal)
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	content := `
[database]
path = "/tmp/other.db"

[server]
addr = "127.0.0.1:8080"
max_upload_mb = 4

[journal]
default_user_id = 7
read_only = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, int64(4<<20), cfg.MaxUploadBytes())
	assert.Equal(t, int64(7), cfg.Journal.DefaultUserID)
	assert.True(t, cfg.Journal.ReadOnly)
	assert.Equal(t, "#ef4444", cfg.Journal.DefaultTagColor)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/data/journal.db")
	t.Setenv("JOURNAL_HTTP_ADDR", ":9999")
	t.Setenv("JOURNAL_LOG_LEVEL", "debug")
	t.Setenv("JOURNAL_UPLOAD_DIR", "/data/uploads")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/data/journal.db", cfg.Database.Path)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/data/uploads", cfg.Screenshots.Dir)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[logging]\nlevel = \"loud\"\n"), 0644))

	_, err := Load(dir)
	assert.ErrorIs(t, err, jerrors.ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"negative login limit", func(c *Config) { c.Server.AuthFailuresPerMinute = -1 }},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/99"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"keep zero backups", func(c *Config) { c.Backup.Keep = 0 }},
		{"zero viewport", func(c *Config) { c.Screenshots.ViewportWidth = 0 }},
		{"zero timeout", func(c *Config) { c.Screenshots.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Screenshots.CaptureRetries = -1 }},
		{"zero breaker failures", func(c *Config) { c.Screenshots.BreakerFailures = 0 }},
		{"zero user", func(c *Config) { c.Journal.DefaultUserID = 0 }},
		{"bad tag color", func(c *Config) { c.Journal.DefaultTagColor = "red" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), jerrors.ErrConfigInvalid)
		})
	}
}

func TestTrustedNets(t *testing.T) {
	cfg := ServerConfig{TrustedProxies: []string{"127.0.0.1", "10.0.0.0/8", "::1"}}
	nets, err := cfg.TrustedNets()
	require.NoError(t, err)
	require.Len(t, nets, 3)

	assert.True(t, nets[0].Contains(net.ParseIP("127.0.0.1")))
	assert.False(t, nets[0].Contains(net.ParseIP("127.0.0.2")))
	assert.True(t, nets[1].Contains(net.ParseIP("10.20.30.40")))
	assert.True(t, nets[2].Contains(net.ParseIP("::1")))

	_, err = ServerConfig{TrustedProxies: []string{"proxy.local"}}.TrustedNets()
	assert.Error(t, err)
}
