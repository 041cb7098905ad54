package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trading Journal Configuration

[database]
# SQLite database file (override with DATABASE_PATH)
path = "trading_journal.db"

[server]
# Listen address for "journal serve" (override with JOURNAL_HTTP_ADDR)
addr = ":5000"
read_timeout = "15s"
write_timeout = "60s"
# Largest accepted screenshot upload in megabytes
max_upload_mb = 16
cors_origins = ["*"]
# Failed logins allowed per client per minute (0 disables the limit)
auth_failures_per_minute = 10
# Reverse proxies (IPs or CIDRs) allowed to set X-Forwarded-For / X-Real-IP
trusted_proxies = []

[logging]
# trace, debug, info, warn, error
level = "info"
console = true
file = false
# Rotated log file settings
max_size = 10
max_backups = 5
max_age = 30

[backup]
# Directory for gzip database backups
dir = "backups"
# Backups kept by "journal db cleanup-backups"
keep = 10

[screenshots]
# Upload and capture directory (override with JOURNAL_UPLOAD_DIR)
dir = "uploads"
viewport_width = 1920
viewport_height = 1080
# Time given to chart pages to render before capture
render_wait = "3s"
timeout = "30s"
# Extra attempts after a failed capture
capture_retries = 1
# Consecutive failures before captures pause for breaker_cooldown
breaker_failures = 3
breaker_cooldown = "1m"

[journal]
# User the CLI acts as when --user is not given
default_user_id = 1
# Color given to tags created without one
default_tag_color = "#ef4444"
# Block every change to the journal
read_only = false

[audit]
# Write JSON audit events for every change
enabled = false
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
