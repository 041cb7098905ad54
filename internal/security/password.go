// Package security provides password hashing, audit logging, read-only mode
// and input sanitization for the journal.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	jerrors "trade-journal/internal/errors"
)

const (
	// PBKDF2Iterations is the iteration count for new password hashes.
	PBKDF2Iterations = 600000
	// SaltSize is the length of the generated salt in characters.
	SaltSize = 16
	// KeySize is the derived key length in bytes.
	KeySize = 32

	hashMethod   = "pbkdf2:sha256"
	saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// HashPassword derives a password hash in the
// "pbkdf2:sha256:<iterations>$<salt>$<hex digest>" format, which stays
// readable by accounts created with werkzeug-style tooling.
func HashPassword(password string) (string, error) {
	return hashWithIterations(password, PBKDF2Iterations)
}

func hashWithIterations(password string, iterations int) (string, error) {
	if password == "" {
		return "", jerrors.NewValidationError("password", "", "password cannot be empty")
	}
	salt, err := generateSalt(SaltSize)
	if err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := deriveKey(password, salt, iterations)
	return fmt.Sprintf("%s:%d$%s$%s", hashMethod, iterations, salt, hex.EncodeToString(key)), nil
}

// CheckPassword reports whether password matches a hash produced by
// HashPassword. Malformed hashes never match.
func CheckPassword(hash, password string) bool {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, digest := parts[0], parts[1], parts[2]

	if !strings.HasPrefix(method, hashMethod+":") {
		return false
	}
	iterations, err := strconv.Atoi(strings.TrimPrefix(method, hashMethod+":"))
	if err != nil || iterations <= 0 {
		return false
	}
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func deriveKey(password, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), iterations, KeySize, sha256.New)
}

func generateSalt(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(saltAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(saltAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
