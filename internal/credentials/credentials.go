// Package credentials holds the bearer credential shared by the REST client
// and the connection manager.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized means no credential is stored for the session.
var ErrUnauthorized = errors.New("unauthorized")

// Credentials is the signed-in user's bearer token and id.
type Credentials struct {
	Token  string `json:"token"`
	UserID int    `json:"user_id"`
}

// Empty reports whether no token is present.
func (c Credentials) Empty() bool { return c.Token == "" }

// Store persists credentials. Refreshing them is someone else's job.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
	Close() error
}

// Provider hands out the current token. It never caches, so a refreshed
// credential is picked up on the next call.
type Provider struct {
	store Store
}

// NewProvider wraps a store.
func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// Token returns the bearer token or ErrUnauthorized.
func (p *Provider) Token(ctx context.Context) (string, error) {
	creds, err := p.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

// Credentials returns the stored credentials or ErrUnauthorized.
func (p *Provider) Credentials(ctx context.Context) (Credentials, error) {
	creds, err := p.store.Load(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	if creds.Empty() {
		return Credentials{}, ErrUnauthorized
	}
	return creds, nil
}

// FromToken builds credentials, taking the user id from the token claims.
// The signature is not verified: the server does that, the client only needs the id.
func FromToken(token string) (Credentials, error) {
	userID, err := UserIDFromToken(token)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Token: token, UserID: userID}, nil
}

// UserIDFromToken reads the user id from the "user_id", "id" or "sub" claim.
func UserIDFromToken(token string) (int, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	for _, key := range []string{"user_id", "id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return int(v), nil
			}
		case string:
			if id, err := strconv.Atoi(v); err == nil && id > 0 {
				return id, nil
			}
		}
	}
	return 0, errors.New("token carries no user id claim")
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore creates a store pre-loaded with creds (may be empty).
func NewMemoryStore(creds Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

func (s *MemoryStore) Load(ctx context.Context) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

func (s *MemoryStore) Save(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
