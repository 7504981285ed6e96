// Package session issues and verifies login sessions. A session is a row in
// the sessions table; the client holds it as a signed HS256 JWT whose jti is
// the row id and whose sub is the user id, so deleting the row revokes the
// token before it expires.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSession covers bad signatures, malformed tokens and revoked
	// sessions.
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

const (
	// DefaultDuration applies when a repository is built with a zero TTL.
	DefaultDuration = 7 * 24 * time.Hour
	// CookieName is where browsers keep the token; API clients send it as a
	// bearer token instead.
	CookieName = "session_token"
)

// Session is a verified login. Token is the signed JWT handed to the client.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	// Create stores a new session and signs its token.
	Create(ctx context.Context, userID uuid.UUID, username string) (*Session, error)
	// GetByToken checks the signature and expiry, then that the session row
	// still exists.
	GetByToken(ctx context.Context, token string) (*Session, error)
	// Delete revokes the session a token refers to, even if it already expired.
	Delete(ctx context.Context, token string) error
	// DeleteByUserID revokes every session of a user.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
