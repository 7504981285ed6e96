package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/billbatista/acasinha-ledger/database"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// claims carries the session id as jti and the user id as sub.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type repository struct {
	db       *database.DB
	secret   []byte
	duration time.Duration
}

// NewRepository stores sessions in db and signs their tokens with secret.
func NewRepository(db *database.DB, secret []byte, duration time.Duration) *repository {
	if duration == 0 {
		duration = DefaultDuration
	}
	return &repository{db: db, secret: secret, duration: duration}
}

func (r *repository) Create(ctx context.Context, userID uuid.UUID, username string) (*Session, error) {
	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		ExpiresAt: now.Add(r.duration),
		CreatedAt: now,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	session.Token = signed

	query := r.db.Rebind(`
        INSERT INTO sessions (id, user_id, expires_at, created_at)
        VALUES ($1, $2, $3, $4)
    `)

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetByToken verifies the token signature and expiry, then checks that the
// session was not revoked.
func (r *repository) GetByToken(ctx context.Context, token string) (*Session, error) {
	c, err := r.parse(token)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session := Session{Token: token, Username: c.Username}

	query := r.db.Rebind(`
        SELECT id, user_id, expires_at, created_at
        FROM sessions
        WHERE id = $1
    `)

	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	if session.UserID.String() != c.Subject {
		return nil, ErrInvalidSession
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrExpiredSession
	}

	return &session, nil
}

// Delete revokes the session behind token (logout). Expired tokens can still
// be revoked.
func (r *repository) Delete(ctx context.Context, token string) error {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, r.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return ErrInvalidSession
	}

	query := r.db.Rebind(`DELETE FROM sessions WHERE id = $1`)
	_, err = r.db.ExecContext(ctx, query, c.ID)
	return err
}

// DeleteByUserID removes all sessions for a user
func (r *repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := r.db.Rebind(`DELETE FROM sessions WHERE user_id = $1`)
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *repository) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, r.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredSession
	}
	if err != nil {
		return nil, ErrInvalidSession
	}
	return &c, nil
}

func (r *repository) key(*jwt.Token) (any, error) {
	return r.secret, nil
}
