package security

import (
	"context"
	"fmt"
	"sync"
)

// OperationType represents the type of operation.
type OperationType string

const (
	// Read operations
	OpRead OperationType = "READ"

	// Write operations (blocked in read-only mode)
	OpCreateTrade   OperationType = "CREATE_TRADE"
	OpCloseTrade    OperationType = "CLOSE_TRADE"
	OpDeleteTrade   OperationType = "DELETE_TRADE"
	OpTagTrade      OperationType = "TAG_TRADE"
	OpCreateTag     OperationType = "CREATE_TAG"
	OpAttachFile    OperationType = "ATTACH_SCREENSHOT"
	OpClearData     OperationType = "CLEAR_DATA"
	OpRestoreBackup OperationType = "RESTORE_BACKUP"
	OpCreateUser    OperationType = "CREATE_USER"
)

// ReadOnlyError represents an error when attempting a write operation in read-only mode.
type ReadOnlyError struct {
	Operation OperationType
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("operation %s blocked: read-only mode is enabled", e.Operation)
}

// AccessController manages read-only mode. A read-only journal still serves
// every report.
type AccessController struct {
	readOnly    bool
	auditLogger *AuditLogger
	mu          sync.RWMutex
}

// NewAccessController creates a new access controller. auditLogger may be nil.
func NewAccessController(readOnly bool, auditLogger *AuditLogger) *AccessController {
	return &AccessController{
		readOnly:    readOnly,
		auditLogger: auditLogger,
	}
}

// IsReadOnly returns whether read-only mode is enabled.
func (ac *AccessController) IsReadOnly() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.readOnly
}

// SetReadOnly sets the read-only mode.
func (ac *AccessController) SetReadOnly(readOnly bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.readOnly = readOnly
}

// CheckPermission checks if an operation is allowed.
func (ac *AccessController) CheckPermission(ctx context.Context, op OperationType) error {
	if ac == nil {
		return nil
	}
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	if !ac.readOnly || !isWriteOperation(op) {
		return nil
	}
	if ac.auditLogger != nil {
		ac.auditLogger.LogReadOnlyViolation(ctx, string(op))
	}
	return &ReadOnlyError{Operation: op}
}

func isWriteOperation(op OperationType) bool {
	for _, w := range WriteOperations() {
		if op == w {
			return true
		}
	}
	return false
}

// WriteOperations returns every operation blocked in read-only mode.
func WriteOperations() []OperationType {
	return []OperationType{
		OpCreateTrade,
		OpCloseTrade,
		OpDeleteTrade,
		OpTagTrade,
		OpCreateTag,
		OpAttachFile,
		OpClearData,
		OpRestoreBackup,
		OpCreateUser,
	}
}
