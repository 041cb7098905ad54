// Package config provides configuration management for the trading journal.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/viper"

	jerrors "trade-journal/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig   `mapstructure:"database"`
	Server      ServerConfig     `mapstructure:"server"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Backup      BackupConfig     `mapstructure:"backup"`
	Screenshots ScreenshotConfig `mapstructure:"screenshots"`
	Journal     JournalConfig    `mapstructure:"journal"`
	Audit       AuditConfig      `mapstructure:"audit"`

	// File is the config file that was read. Empty when defaults were used.
	File string `mapstructure:"-"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int           `mapstructure:"max_upload_mb"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	// AuthFailuresPerMinute limits failed logins per client. 0 disables.
	AuthFailuresPerMinute int `mapstructure:"auth_failures_per_minute"`
	// TrustedProxies lists the peers, as IPs or CIDRs, whose X-Forwarded-For
	// and X-Real-IP headers name the client. Empty trusts none.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedNets parses TrustedProxies. A bare IP is a single-address network.
func (c ServerConfig) TrustedNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if ip := net.ParseIP(entry); ip != nil {
			bits := 8 * len(ip.To16())
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", entry)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// BackupConfig holds database backup configuration.
type BackupConfig struct {
	Dir  string `mapstructure:"dir"`
	Keep int    `mapstructure:"keep"`
}

// ScreenshotConfig holds chart screenshot configuration.
type ScreenshotConfig struct {
	Dir            string        `mapstructure:"dir"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	RenderWait     time.Duration `mapstructure:"render_wait"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// CaptureRetries is the number of extra attempts after a failed capture.
	CaptureRetries int `mapstructure:"capture_retries"`
	// BreakerFailures consecutive failures stop captures for BreakerCooldown.
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// JournalConfig holds journal behaviour.
type JournalConfig struct {
	DefaultUserID   int64  `mapstructure:"default_user_id"`
	DefaultTagColor string `mapstructure:"default_tag_color"`
	ReadOnly        bool   `mapstructure:"read_only"`
}

// AuditConfig holds audit log configuration.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trade-journal"
	}
	return filepath.Join(home, ".config", "trade-journal")
}

// ConfigPath returns the config file path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("database.path", "trading_journal.db")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.max_upload_mb", 16)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.auth_failures_per_minute", 10)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "journal.log"))
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.keep", 10)

	v.SetDefault("screenshots.dir", "uploads")
	v.SetDefault("screenshots.viewport_width", 1920)
	v.SetDefault("screenshots.viewport_height", 1080)
	v.SetDefault("screenshots.render_wait", "3s")
	v.SetDefault("screenshots.timeout", "30s")
	v.SetDefault("screenshots.capture_retries", 1)
	v.SetDefault("screenshots.breaker_failures", 3)
	v.SetDefault("screenshots.breaker_cooldown", "1m")

	v.SetDefault("journal.default_user_id", 1)
	v.SetDefault("journal.default_tag_color", "#ef4444")
	v.SetDefault("journal.read_only", false)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.dir", filepath.Join(configDir, "audit"))
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	v.Unmarshal(cfg)
	return cfg
}

// Load loads config.toml from configDir. If configDir is empty, uses the
// default config directory. A missing file is replaced by a commented
// template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("JOURNAL_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("JOURNAL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JOURNAL_UPLOAD_DIR"); v != "" {
		cfg.Screenshots.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return jerrors.Wrapf(jerrors.ErrConfigInvalid, format, args...)
	}

	if c.Database.Path == "" {
		return invalid("database.path must be set")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr must be set")
	}
	if c.Server.MaxUploadMB <= 0 {
		return invalid("server.max_upload_mb must be positive")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return invalid("invalid log level: %s", c.Logging.Level)
	}

	if c.Backup.Keep < 1 {
		return invalid("backup.keep must be at least 1")
	}
	if c.Server.AuthFailuresPerMinute < 0 {
		return invalid("server.auth_failures_per_minute must not be negative")
	}
	if _, err := c.Server.TrustedNets(); err != nil {
		return invalid("server.trusted_proxies: %v", err)
	}
	if c.Screenshots.ViewportWidth <= 0 || c.Screenshots.ViewportHeight <= 0 {
		return invalid("screenshot viewport must be positive")
	}
	if c.Screenshots.Timeout <= 0 {
		return invalid("screenshots.timeout must be positive")
	}
	if c.Screenshots.CaptureRetries < 0 {
		return invalid("screenshots.capture_retries must not be negative")
	}
	if c.Screenshots.BreakerFailures < 1 {
		return invalid("screenshots.breaker_failures must be at least 1")
	}
	if c.Journal.DefaultUserID < 1 {
		return invalid("journal.default_user_id must be at least 1")
	}
	if !hexColor.MatchString(c.Journal.DefaultTagColor) {
		return invalid("journal.default_tag_color must be a #rrggbb color")
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
