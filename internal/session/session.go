// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session issues and verifies server-signed session tokens. Tokens
// are the only carrier of organization claims; nothing a client can edit
// feeds organization resolution.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")
)

// Session is a verified session token.
type Session struct {
	ID     string
	UserID string
	// OrganizationID is the server-issued home organization claim. Empty
	// when the user signed in without an organization context.
	OrganizationID string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

type claims struct {
	OrganizationID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Config configures token signing.
type Config struct {
	Secret   []byte
	Issuer   string
	Lifetime time.Duration
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "pinpoint"
	}
	return &Manager{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		lifetime: cfg.Lifetime,
		now:      time.Now,
	}, nil
}

// Issue signs a token for userID with an optional organization claim.
func (m *Manager) Issue(userID, organizationID string) (string, *Session, error) {
	if userID == "" {
		return "", nil, fmt.Errorf("user id is required")
	}
	now := m.now().UTC().Truncate(time.Second)
	s := &Session{
		ID:             id.NewUUIDv7(),
		UserID:         userID,
		OrganizationID: organizationID,
		IssuedAt:       now,
		ExpiresAt:      now.Add(m.lifetime),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, s, nil
}

// Verify parses a token and checks its signature, issuer and expiry.
func (m *Manager) Verify(raw string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if c.Subject == "" {
		return nil, ErrSessionInvalid
	}

	s := &Session{
		ID:             c.ID,
		UserID:         c.Subject,
		OrganizationID: c.OrganizationID,
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}

// Lifetime returns the validity of issued tokens.
func (m *Manager) Lifetime() time.Duration { return m.lifetime }

type sessionKey struct{}

// WithSession attaches a verified session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the verified session of the request, or nil for
// anonymous requests.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
