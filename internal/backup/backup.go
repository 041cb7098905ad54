// Package backup creates, lists, prunes and restores gzip copies of the
// journal database.
package backup

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
)

const (
	filePrefix  = "trading_journal_backup_"
	fileSuffix  = ".db.gz"
	stampLayout = "20060102_150405"

	// RestoreSuffix is appended to the database path to keep the database
	// that a restore replaced.
	RestoreSuffix = ".before_restore"
)

// Checkpointer flushes pending writes into the database file.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Info describes one backup file.
type Info struct {
	Name    string    `json:"filename"`
	Path    string    `json:"path"`
	SizeKB  float64   `json:"size_kb"`
	Created time.Time `json:"created"`
}

// Manager manages backups of one database file.
type Manager struct {
	DBPath string
	Dir    string

	db     Checkpointer
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCheckpointer checkpoints the open database before every copy.
func WithCheckpointer(c Checkpointer) Option {
	return func(m *Manager) { m.db = c }
}

// WithClock replaces time.Now for backup names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager writing backups of dbPath into dir.
func NewManager(dbPath, dir string, opts ...Option) *Manager {
	m := &Manager{
		DBPath: dbPath,
		Dir:    dir,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FileName returns the backup name for a timestamp.
func FileName(t time.Time) string {
	return filePrefix + t.Format(stampLayout) + fileSuffix
}

// Create writes a compressed copy of the database and returns its info.
func (m *Manager) Create(ctx context.Context) (*Info, error) {
	if m.db != nil {
		if err := m.db.Checkpoint(ctx); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	src, err := os.Open(m.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer src.Close()

	created := m.now()
	path := filepath.Join(m.Dir, FileName(created))
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("backup %s already exists", filepath.Base(path))
	}

	if err := compressFile(src, path); err != nil {
		os.Remove(path)
		logging.LogBackup(m.logger, "create", path, 0, err)
		return nil, err
	}

	info, err := m.stat(path)
	if err != nil {
		return nil, err
	}
	logging.LogBackup(m.logger, "create", path, info.SizeKB, nil)
	return info, nil
}

func compressFile(src io.Reader, path string) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return fmt.Errorf("failed to compress database: %w", err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("failed to compress database: %w", err)
	}
	return dst.Close()
}

// Resolve turns a backup name or path into a path. Bare names are looked up
// in the backup directory.
func (m *Manager) Resolve(name string) (string, error) {
	path := name
	if !strings.ContainsRune(name, os.PathSeparator) {
		path = filepath.Join(m.Dir, name)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", jerrors.Wrapf(jerrors.ErrBackupNotFound, "%s", name)
		}
		return "", fmt.Errorf("failed to stat backup: %w", err)
	}
	return path, nil
}

// Restore replaces the database with the contents of a backup. The current
// database is kept next to it with RestoreSuffix. The caller must close any
// open connection to the database first.
func (m *Manager) Restore(name string) error {
	path, err := m.Resolve(name)
	if err != nil {
		return err
	}

	// Decompress before touching the database so a corrupt backup changes nothing.
	tmp := m.DBPath + ".restoring"
	if err := decompressFile(path, tmp); err != nil {
		os.Remove(tmp)
		logging.LogBackup(m.logger, "restore", path, 0, err)
		return err
	}

	if _, err := os.Stat(m.DBPath); err == nil {
		if err := copyFile(m.DBPath, m.DBPath+RestoreSuffix); err != nil {
			os.Remove(tmp)
			return err
		}
	}
	for _, side := range []string{"-wal", "-shm"} {
		os.Remove(m.DBPath + side)
	}
	if err := os.Rename(tmp, m.DBPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace database: %w", err)
	}

	logging.LogBackup(m.logger, "restore", path, 0, nil)
	return nil
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		return fmt.Errorf("failed to decompress backup: %w", err)
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy database: %w", err)
	}
	return out.Close()
}

// List returns the backups in the backup directory, newest first. A missing
// directory has no backups.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		info, err := m.stat(filepath.Join(m.Dir, e.Name()))
		if err != nil {
			return nil, err
		}
		backups = append(backups, *info)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Created.After(backups[j].Created)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// stat describes a backup file. The creation time comes from the name when
// it carries a timestamp, else from the file modification time.
func (m *Manager) stat(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	name := filepath.Base(path)
	created := fi.ModTime()
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if t, err := time.ParseInLocation(stampLayout, stamp, time.Local); err == nil {
		created = t
	}
	size, _ := decimal.NewFromInt(fi.Size()).Div(decimal.NewFromInt(1024)).Round(2).Float64()
	return &Info{Name: name, Path: path, SizeKB: size, Created: created}, nil
}

// Cleanup removes all but the keep newest backups and returns the removed
// names.
func (m *Manager) Cleanup(keep int) ([]string, error) {
	if keep < 0 {
		return nil, jerrors.NewValidationError("keep", keep, "must not be negative")
	}
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", b.Name, err)
		}
		m.logger.Info().Str("file", b.Name).Msg("Removed old backup")
		removed = append(removed, b.Name)
	}
	return removed, nil
}
