package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSessionExpired reports a persisted token past its expiry; the user has
// to log in again.
var ErrSessionExpired = errors.New("session expired")

// Credentials is the persisted session: the bearer token and the identity it
// was issued for.
type Credentials struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// SaveCredentials writes the session to disk, world-unreadable.
func SaveCredentials(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadCredentials reads a persisted session and rejects it when the token's
// exp claim has passed. The signature is the server's to verify; the local
// check only avoids presenting a token that is certainly dead.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, ErrSessionExpired
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(creds.Token, claims); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("parsing token expiry: %w", err)
	}
	if exp != nil && exp.Before(time.Now()) {
		return nil, ErrSessionExpired
	}
	return &creds, nil
}

// ClearCredentials removes the persisted session, ignoring a missing file.
func ClearCredentials(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
