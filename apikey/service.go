// Package apikey implements API-key lifecycle and verification:
// generation, cost-12 bcrypt hashing, and prefix-scoped lookup.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sms-gateway-api/db"
)

const (
	bcryptCost  = 12
	prefixChars = 20
	secretBytes = 24
)

// ErrInvalidKey is returned by Verify when the presented secret does
// not match any active key. Callers must not reveal which check failed.
var ErrInvalidKey = errors.New("invalid api key")

// CreatedKey is returned once at creation time; the raw Secret is never
// retrievable again.
type CreatedKey struct {
	db.ApiKey
	Secret string
}

// Create mints a new secret, hashes it at bcryptCost, and persists the
// ApiKey row. rateLimit is nil to fall back to the configured default.
func Create(name string, rateLimit *int) (*CreatedKey, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate api key secret: %w", err)
	}
	secret := "sk_live_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api key secret: %w", err)
	}

	prefix := secret
	if len(prefix) > prefixChars {
		prefix = prefix[:prefixChars]
	}

	id := uuid.New().String()
	key, err := db.CreateApiKey(id, name, string(hash), prefix, rateLimit)
	if err != nil {
		return nil, err
	}

	return &CreatedKey{ApiKey: *key, Secret: secret}, nil
}

// Verify extracts the lookup prefix, finds the active keys sharing it,
// and checks the secret against their hashes.
// Multiple active keys can (rarely) share a prefix; each is checked so
// the caller only ever needs to try the presented secret once.
func Verify(presented string) (*db.ApiKey, error) {
	if presented == "" {
		return nil, ErrInvalidKey
	}

	prefix := presented
	if len(prefix) > prefixChars {
		prefix = prefix[:prefixChars]
	}

	candidates, err := db.ActiveApiKeysByPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	for i := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(candidates[i].KeyHash), []byte(presented)) == nil {
			return &candidates[i], nil
		}
	}
	return nil, ErrInvalidKey
}
