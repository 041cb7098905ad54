// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// SQLiteStore implements JournalStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for migrations and slow paths.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = logger }
}

// NewSQLiteStore opens (or creates) the journal database at dbPath and makes
// sure the base schema and default tags exist.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// initSchema creates all required tables and seeds the default tags.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		full_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_login DATETIME,
		is_active INTEGER DEFAULT 1,
		plan TEXT DEFAULT 'free'
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL DEFAULT 1,
		pair TEXT NOT NULL,
		session TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		setup_type TEXT NOT NULL,
		trade_type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		position_size REAL NOT NULL,
		risk_amount REAL NOT NULL,
		reward_amount REAL NOT NULL,
		risk_reward_ratio REAL NOT NULL,
		risk_percentage REAL,
		confidence INTEGER,
		emotion_before TEXT,
		rule_followed INTEGER DEFAULT 1,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME,
		exit_price REAL,
		profit_loss REAL,
		status TEXT DEFAULT 'open',
		notes TEXT,
		screenshot_before TEXT,
		screenshot_after TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS trade_tags (
		trade_id INTEGER,
		tag_id INTEGER,
		FOREIGN KEY (trade_id) REFERENCES trades(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (trade_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_status_exit ON trades(status, exit_time);
	CREATE INDEX IF NOT EXISTS idx_trade_tags_tag ON trade_tags(tag_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	for _, tag := range models.DefaultTags {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO tags (name, color) VALUES (?, ?)`, tag.Name, tag.Color); err != nil {
			return fmt.Errorf("failed to seed tag %q: %w", tag.Name, err)
		}
	}
	return nil
}

// Checkpoint flushes the write-ahead log into the main database file so a
// file copy of the database is complete.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}

// Ping checks that the database answers a query.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// dbTime normalizes timestamps before they are written so stored values
// compare correctly as text.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// CreateUser inserts a user and sets its ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = dbTime(user.CreatedAt)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, full_name, created_at, is_active, plan)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Email, user.PasswordHash, user.FullName, user.CreatedAt, user.IsActive, string(user.Plan))
	if isUniqueViolation(err) {
		return jerrors.Wrapf(jerrors.ErrDuplicateEmail, "create user %s", user.Email)
	}
	if err != nil {
		return jerrors.NewStoreError("create", "user", err)
	}

	user.ID, err = res.LastInsertId()
	return err
}

const userColumns = `id, email, password_hash, COALESCE(full_name, ''), created_at, last_login, COALESCE(is_active, 1), COALESCE(plan, 'free')`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var plan string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt, &u.LastLogin, &u.IsActive, &plan); err != nil {
		return nil, err
	}
	u.Plan = models.Plan(plan)
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, jerrors.Wrapf(jerrors.ErrUserNotFound, "user %d", id)
	}
	if err != nil {
		return nil, jerrors.NewStoreError("get", "user", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, jerrors.Wrapf(jerrors.ErrUserNotFound, "user %s", email)
	}
	if err != nil {
		return nil, jerrors.NewStoreError("get", "user", err)
	}
	return u, nil
}

// TouchLogin records a successful login.
func (s *SQLiteStore) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, dbTime(at), id)
	if err != nil {
		return jerrors.NewStoreError("touch", "user", err)
	}
	return nil
}

// ListTags returns all tags ordered by name.
func (s *SQLiteStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, jerrors.NewStoreError("list", "tag", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CreateTag inserts a tag and sets its ID. Tag names are unique.
func (s *SQLiteStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name, color) VALUES (?, ?)`, tag.Name, tag.Color)
	if isUniqueViolation(err) {
		return jerrors.Wrapf(jerrors.ErrDuplicateTag, "tag %q", tag.Name)
	}
	if err != nil {
		return jerrors.NewStoreError("create", "tag", err)
	}
	tag.ID, err = res.LastInsertId()
	return err
}

// GetTag retrieves a tag by ID.
func (s *SQLiteStore) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	var t models.Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM tags WHERE id = ?`, id).Scan(&t.ID, &t.Name, &t.Color)
	if err == sql.ErrNoRows {
		return nil, jerrors.Wrapf(jerrors.ErrTagNotFound, "tag %d", id)
	}
	if err != nil {
		return nil, jerrors.NewStoreError("get", "tag", err)
	}
	return &t, nil
}

// AttachTag links a tag to one of the user's trades. Attaching a tag twice is
// a no-op.
func (s *SQLiteStore) AttachTag(ctx context.Context, userID, tradeID, tagID int64) error {
	if err := s.ownsTrade(ctx, userID, tradeID); err != nil {
		return err
	}
	if _, err := s.GetTag(ctx, tagID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO trade_tags (trade_id, tag_id) VALUES (?, ?)`, tradeID, tagID)
	if err != nil {
		return jerrors.NewStoreError("attach", "tag", err)
	}
	return nil
}

// DetachTag removes a tag from one of the user's trades.
func (s *SQLiteStore) DetachTag(ctx context.Context, userID, tradeID, tagID int64) error {
	if err := s.ownsTrade(ctx, userID, tradeID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM trade_tags WHERE trade_id = ? AND tag_id = ?`, tradeID, tagID)
	if err != nil {
		return jerrors.NewStoreError("detach", "tag", err)
	}
	return nil
}

// TradeTags returns the tags attached to one of the user's trades.
func (s *SQLiteStore) TradeTags(ctx context.Context, userID, tradeID int64) ([]models.Tag, error) {
	if err := s.ownsTrade(ctx, userID, tradeID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color FROM tags t
		JOIN trade_tags tt ON t.id = tt.tag_id
		WHERE tt.trade_id = ?
		ORDER BY t.name
	`, tradeID)
	if err != nil {
		return nil, jerrors.NewStoreError("list", "trade tag", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// userTags maps trade ID to attached tags for all of a user's trades.
func (s *SQLiteStore) userTags(ctx context.Context, userID int64) (map[int64][]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tt.trade_id, t.id, t.name, t.color FROM trade_tags tt
		JOIN tags t ON t.id = tt.tag_id
		JOIN trades tr ON tr.id = tt.trade_id
		WHERE tr.user_id = ?
		ORDER BY tt.trade_id, t.id
	`, userID)
	if err != nil {
		return nil, jerrors.NewStoreError("list", "trade tag", err)
	}
	defer rows.Close()

	byTrade := make(map[int64][]models.Tag)
	for rows.Next() {
		var tradeID int64
		var t models.Tag
		if err := rows.Scan(&tradeID, &t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("failed to scan trade tag: %w", err)
		}
		byTrade[tradeID] = append(byTrade[tradeID], t)
	}
	return byTrade, rows.Err()
}
