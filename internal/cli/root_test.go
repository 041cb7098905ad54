package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/analytics"
	"trade-journal/internal/backup"
	"trade-journal/internal/models"
	"trade-journal/internal/security"
)

var fixedTime = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type cliEnv struct {
	dir       string
	configDir string
}

// newCLIEnv writes a config.toml that keeps every file inside a temp dir.
func newCLIEnv(t *testing.T, readOnly bool) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	cfg := fmt.Sprintf(`[database]
path = %q

[logging]
level = "error"
console = false

[backup]
dir = %q
keep = 3

[screenshots]
dir = %q

[journal]
read_only = %t

[audit]
dir = %q
`, filepath.Join(dir, "journal.db"), filepath.Join(dir, "backups"), filepath.Join(dir, "uploads"), readOnly, filepath.Join(dir, "audit"))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(cfg), 0644))

	return &cliEnv{dir: dir, configDir: configDir}
}

// run executes one CLI invocation and returns its stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", e.configDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "journal %s\n%s", strings.Join(args, " "), out)
	return out
}

func (e *cliEnv) runJSON(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out := e.mustRun(t, append(args, "--json")...)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func (e *cliEnv) createUser(t *testing.T) {
	t.Helper()
	var user models.User
	e.runJSON(t, &user, "user", "create", "--email", "Trader@Example.com", "--password", "secret-pass", "--name", "Test Trader")
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, "trader@example.com", user.Email)
}

var eurusdArgs = []string{
	"trade", "add",
	"--pair", "eurusd",
	"--session", "london",
	"--setup", "Break & Retest",
	"--type", "buy",
	"--entry", "1.1", "--sl", "1.095", "--tp", "1.11",
	"--size", "10000",
	"--at", "2024-03-11 09:00",
}

func TestVersionAndConfig(t *testing.T) {
	env := newCLIEnv(t, false)

	var version map[string]string
	env.runJSON(t, &version, "version")
	assert.Equal(t, Version, version["version"])

	out := env.mustRun(t, "config", "path")
	assert.Equal(t, filepath.Join(env.configDir, "config.toml"), strings.TrimSpace(out))

	out = env.mustRun(t, "config", "validate")
	assert.Contains(t, out, "Configuration is valid")

	out = env.mustRun(t, "config", "show")
	assert.Contains(t, out, filepath.Join(env.dir, "journal.db"))

	_, err := os.Stat(filepath.Join(env.dir, "journal.db"))
	assert.True(t, os.IsNotExist(err), "config commands must not open the database")
}

func TestTradeWorkflow(t *testing.T) {
	env := newCLIEnv(t, false)
	env.createUser(t)

	var trade models.Trade
	env.runJSON(t, &trade, eurusdArgs...)
	assert.Equal(t, "EURUSD", trade.Pair)
	assert.Equal(t, models.SessionLondon, trade.Session)
	assert.Equal(t, models.DirectionBuy, trade.Direction)
	assert.Equal(t, "H1", trade.Timeframe)
	assert.Equal(t, 2.0, trade.RiskReward)
	assert.Equal(t, models.StatusOpen, trade.Status)

	var closed struct {
		TradeID    int64   `json:"trade_id"`
		ProfitLoss float64 `json:"profit_loss"`
	}
	env.runJSON(t, &closed, "trade", "close", "1", "--exit", "1.105", "--at", "2024-03-11 15:00")
	assert.Equal(t, trade.ID, closed.TradeID)
	assert.InDelta(t, 50.0, closed.ProfitLoss, 1e-6)

	_, err := env.run(t, "trade", "close", "1", "--exit", "1.2")
	assert.Error(t, err, "closing twice must fail")

	var tags []models.Tag
	env.runJSON(t, &tags, "trade", "tag", "1", "4")
	require.Len(t, tags, 1)
	assert.Equal(t, "FOMO", tags[0].Name)

	var summary analytics.Summary
	env.runJSON(t, &summary, "stats", "summary")
	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 100.0, summary.WinRate)

	var mistakes []analytics.TagFrequency
	env.runJSON(t, &mistakes, "stats", "mistakes")
	require.Len(t, mistakes, 1)
	assert.Equal(t, 1, mistakes[0].Count)

	var report analytics.MonthlyReport
	env.runJSON(t, &report, "stats", "monthly", "2024-03")
	assert.Equal(t, "2024-03", report.Month)
	assert.Equal(t, 1, report.TotalTrades)

	var curve []analytics.EquityPoint
	env.runJSON(t, &curve, "stats", "equity")
	require.Len(t, curve, 1)

	out := env.mustRun(t, "trade", "list")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "closed")

	out = env.mustRun(t, "trade", "show", "1")
	assert.Contains(t, out, "Break & Retest")
	assert.Contains(t, out, "FOMO")

	env.mustRun(t, "trade", "untag", "1", "4")
	env.mustRun(t, "trade", "delete", "1")
	_, err = env.run(t, "trade", "show", "1")
	assert.Error(t, err)
}

func TestTradeAddValidation(t *testing.T) {
	env := newCLIEnv(t, false)
	env.createUser(t)

	args := append([]string{}, eurusdArgs...)
	args[5] = "sydney"
	_, err := env.run(t, args...)
	assert.Error(t, err)

	_, err = env.run(t, "trade", "close", "1")
	assert.Error(t, err, "--exit is required")

	_, err = env.run(t, "trade", "close", "abc", "--exit", "1.1")
	assert.Error(t, err)
}

func TestTagCommands(t *testing.T) {
	env := newCLIEnv(t, false)
	env.createUser(t)

	var tags []models.Tag
	env.runJSON(t, &tags, "tag", "list")
	assert.Len(t, tags, len(models.DefaultTags))

	var tag models.Tag
	env.runJSON(t, &tag, "tag", "add", "Chased price")
	assert.Equal(t, "Chased price", tag.Name)
	assert.Equal(t, models.DefaultTagColor, tag.Color)

	_, err := env.run(t, "tag", "add", "Chased price")
	assert.Error(t, err, "duplicate tag names are rejected")
}

func TestExportCommands(t *testing.T) {
	env := newCLIEnv(t, false)
	env.createUser(t)
	env.mustRun(t, eurusdArgs...)
	env.mustRun(t, "trade", "close", "1", "--exit", "1.105", "--at", "2024-03-11 15:00")

	out := env.mustRun(t, "export", "csv", "-o", "-")
	assert.True(t, strings.HasPrefix(out, "id,user_id,pair"))
	assert.Contains(t, out, "EURUSD")

	workbook := filepath.Join(env.dir, "march.xlsx")
	env.mustRun(t, "export", "xlsx", "2024", "3", "-o", workbook)
	fi, err := os.Stat(workbook)
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(0))

	chart := filepath.Join(env.dir, "equity.html")
	env.mustRun(t, "export", "chart", "-o", chart)
	html, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Equity Curve")
}

func TestDBCommands(t *testing.T) {
	env := newCLIEnv(t, false)
	env.createUser(t)

	var added map[string]int
	env.runJSON(t, &added, "db", "sample-data", "--count", "5")
	assert.Equal(t, 5, added["added"])

	var created struct {
		Backup backup.Info `json:"backup"`
	}
	env.runJSON(t, &created, "db", "backup")
	assert.FileExists(t, created.Backup.Path)

	var list []backup.Info
	env.runJSON(t, &list, "db", "backups")
	require.Len(t, list, 1)
	assert.Equal(t, created.Backup.Name, list[0].Name)

	_, err := env.run(t, "db", "clean-sample-data")
	assert.Error(t, err, "--yes is required")

	var cleared map[string]int64
	env.runJSON(t, &cleared, "db", "clean-sample-data", "--yes")
	assert.Equal(t, int64(5), cleared["deleted"])

	_, err = env.run(t, "db", "restore", created.Backup.Name)
	assert.Error(t, err, "--yes is required")
	env.mustRun(t, "db", "restore", created.Backup.Name, "--yes")
	assert.FileExists(t, filepath.Join(env.dir, "journal.db"+backup.RestoreSuffix))

	var trades []models.Trade
	env.runJSON(t, &trades, "trade", "list")
	assert.Len(t, trades, 5, "restore brings the sample trades back")

	env.mustRun(t, "db", "migrate")
}

func TestReadOnlyConfig(t *testing.T) {
	env := newCLIEnv(t, false)
	env.createUser(t)

	ro := newCLIEnv(t, true)
	cfg, err := os.ReadFile(filepath.Join(env.configDir, "config.toml"))
	require.NoError(t, err)
	cfg = bytes.Replace(cfg, []byte("read_only = false"), []byte("read_only = true"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(ro.configDir, "config.toml"), cfg, 0644))

	_, err = ro.run(t, eurusdArgs...)
	require.Error(t, err)
	var roErr *security.ReadOnlyError
	assert.ErrorAs(t, err, &roErr)

	var summary analytics.Summary
	ro.runJSON(t, &summary, "stats", "summary")
	assert.Equal(t, 0, summary.TotalTrades)
}

func TestParseYearMonth(t *testing.T) {
	year, month, err := parseYearMonth([]string{"2024", "3"}, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 3, int(month))

	year, month, err = parseYearMonth([]string{"2023-12"}, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, 2023, year)
	assert.Equal(t, 12, int(month))

	year, month, err = parseYearMonth(nil, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, fixedTime.Year(), year)
	assert.Equal(t, fixedTime.Month(), month)

	_, _, err = parseYearMonth([]string{"March"}, fixedTime)
	assert.Error(t, err)
}

func TestParseSessionAndDirection(t *testing.T) {
	assert.Equal(t, models.SessionNewYork, parseSession("new york"))
	assert.Equal(t, models.SessionNewYork, parseSession("NY"))
	assert.Equal(t, models.SessionAsian, parseSession("asia"))
	assert.Equal(t, models.Session("Sydney"), parseSession("Sydney"))
	assert.Equal(t, models.DirectionSell, parseDirection("SHORT"))
	assert.Equal(t, models.DirectionBuy, parseDirection("buy"))
}
