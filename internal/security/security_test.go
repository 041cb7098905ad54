package security

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferCloser struct{ bytes.Buffer }

func (b *bufferCloser) Close() error { return nil }

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := hashWithIterations("s3cret", 1000)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "pbkdf2:sha256:1000$"))
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "S3cret"))
}

func TestHashPassword_SaltDiffers(t *testing.T) {
	a, err := hashWithIterations("same", 1000)
	require.NoError(t, err)
	b, err := hashWithIterations("same", 1000)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestCheckPassword_Malformed(t *testing.T) {
	for _, hash := range []string{
		"",
		"plain",
		"md5:1000$salt$abcd",
		"pbkdf2:sha256:x$salt$abcd",
		"pbkdf2:sha256:1000$salt$nothex",
	} {
		assert.False(t, CheckPassword(hash, "pw"), hash)
	}
}

func TestSanitizePair(t *testing.T) {
	assert.Equal(t, "EURUSD", SanitizePair(" eur/usd "))
	assert.Equal(t, "GBPJPY", SanitizePair("GBP-JPY"))
	assert.True(t, ValidPair("XAUUSD"))
	assert.True(t, ValidPair("US30"))
	assert.False(t, ValidPair("EU"))
	assert.False(t, ValidPair("eurusd"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j**n@example.com", MaskEmail("john@example.com"))
	assert.Equal(t, "**@x.io", MaskEmail("ab@x.io"))
	assert.Equal(t, "no-a**mail", MaskEmail("no-at-mail"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "line one\nline two", SanitizeText("  line one\x00\nline two\x7f "))
}

func TestAuditLogger_WritesJSONLines(t *testing.T) {
	buf := &bufferCloser{}
	al := newAuditLogger(buf)

	ctx := WithRequestID(context.Background(), "req-1")
	require.NoError(t, al.Log(ctx, AuditEvent{EventType: AuditTradeCreated, UserID: 3, TradeID: 9, Success: true}))
	require.NoError(t, al.Log(context.Background(), LoginEvent(3, "john@example.com", false)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, AuditTradeCreated, first.EventType)
	assert.Equal(t, int64(9), first.TradeID)
	assert.Equal(t, "req-1", first.RequestID)
	assert.NotEmpty(t, first.SessionID)

	var second AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, AuditAuthFailed, second.EventType)
	assert.Equal(t, "j**n@example.com", second.Details["email"])
	assert.Empty(t, second.RequestID)
}

func TestLoginEvent(t *testing.T) {
	ok := LoginEvent(3, "john@example.com", true)
	assert.Equal(t, AuditLogin, ok.EventType)
	assert.True(t, ok.Success)
	assert.Equal(t, int64(3), ok.UserID)

	failed := LoginEvent(0, "john@example.com", false)
	assert.Equal(t, AuditAuthFailed, failed.EventType)
	assert.False(t, failed.Success)
	assert.Equal(t, "j**n@example.com", failed.Details["email"])
}

func TestAccessController(t *testing.T) {
	ctx := context.Background()
	buf := &bufferCloser{}
	ac := NewAccessController(false, newAuditLogger(buf))

	for _, op := range WriteOperations() {
		assert.NoError(t, ac.CheckPermission(ctx, op))
	}

	ac.SetReadOnly(true)
	assert.True(t, ac.IsReadOnly())
	assert.NoError(t, ac.CheckPermission(ctx, OpRead))
	for _, op := range WriteOperations() {
		assert.Error(t, ac.CheckPermission(ctx, op), op)
	}

	err := ac.CheckPermission(ctx, OpDeleteTrade)
	var roErr *ReadOnlyError
	require.ErrorAs(t, err, &roErr)
	assert.Equal(t, OpDeleteTrade, roErr.Operation)
	assert.Contains(t, buf.String(), string(AuditReadOnlyViolation))

	var nilController *AccessController
	assert.NoError(t, nilController.CheckPermission(ctx, OpDeleteTrade))
}
