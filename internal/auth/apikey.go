// Package auth provides the shared-key primitives used to guard the intake routes:
// generating a key, hashing it with bcrypt for auth.api_key_hash, and comparing a
// caller-supplied key against the configured plain or hashed secret.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of the API key in bytes
	APIKeyLength = 32

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateAPIKey creates a new random key of the form <prefix>_<random>
func GenerateAPIKey(prefix string) (string, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)
	if prefix == "" {
		return randomPart, nil
	}
	return fmt.Sprintf("%s_%s", prefix, randomPart), nil
}

// HashAPIKey returns the bcrypt hash to store in auth.api_key_hash
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks if a provided key matches the stored bcrypt hash
func ValidateAPIKey(providedKey, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedKey))
	return err == nil
}

// MatchAPIKey compares a provided key with a plain configured key in constant time
func MatchAPIKey(providedKey, configuredKey string) bool {
	if providedKey == "" || configuredKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(providedKey), []byte(configuredKey)) == 1
}
