package security

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Authentication events
	AuditLogin       AuditEventType = "LOGIN"
	AuditAuthFailed  AuditEventType = "AUTH_FAILED"
	AuditUserCreated AuditEventType = "USER_CREATED"

	// Journal events
	AuditTradeCreated AuditEventType = "TRADE_CREATED"
	AuditTradeClosed  AuditEventType = "TRADE_CLOSED"
	AuditTradeDeleted AuditEventType = "TRADE_DELETED"
	AuditTagCreated   AuditEventType = "TAG_CREATED"
	AuditTagAttached  AuditEventType = "TAG_ATTACHED"
	AuditTagDetached  AuditEventType = "TAG_DETACHED"
	AuditScreenshot   AuditEventType = "SCREENSHOT_SAVED"
	AuditDataCleared  AuditEventType = "DATA_CLEARED"

	// Maintenance events
	AuditBackupCreated  AuditEventType = "BACKUP_CREATED"
	AuditBackupRestored AuditEventType = "BACKUP_RESTORED"

	// Security events
	AuditReadOnlyViolation AuditEventType = "READ_ONLY_VIOLATION"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	UserID    int64                  `json:"user_id,omitempty"`
	TradeID   int64                  `json:"trade_id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Auditor records journal mutations. The journal service accepts any
// implementation so tests can capture events in memory.
type Auditor interface {
	Log(ctx context.Context, event AuditEvent) error
}

// AuditLogger writes audit events as JSON lines to a rotating file.
type AuditLogger struct {
	writer    io.WriteCloser
	mu        sync.Mutex
	sessionID string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "trade-journal", "audit"),
		MaxSize:    20,
		MaxBackups: 10,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return newAuditLogger(writer), nil
}

func newAuditLogger(w io.WriteCloser) *AuditLogger {
	return &AuditLogger{
		writer:    w,
		sessionID: generateSessionID(),
	}
}

type requestIDKey struct{}

// WithRequestID stores a request ID that Log copies into every event.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Log writes an audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	event.SessionID = al.sessionID
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		event.RequestID = reqID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// LoginEvent describes an authentication attempt. The email is masked.
func LoginEvent(userID int64, email string, success bool) AuditEvent {
	eventType := AuditLogin
	if !success {
		eventType = AuditAuthFailed
	}
	return AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Details:   map[string]interface{}{"email": MaskEmail(email)},
	}
}

// LogReadOnlyViolation logs an attempt to change the journal in read-only mode.
func (al *AuditLogger) LogReadOnlyViolation(ctx context.Context, operation string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditReadOnlyViolation,
		Action:    operation,
		Success:   false,
		ErrorMsg:  "operation blocked: read-only mode enabled",
	})
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	return al.writer.Close()
}

func generateSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
