package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/billbatista/acasinha-ledger/database"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameExists  = errors.New("username already exists")
	ErrInvalidUsername = errors.New("invalid username")
	ErrBlankPassword   = errors.New("password can't be blank")
)

type repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, " \t\n") {
		return nil, ErrInvalidUsername
	}

	if password == "" {
		return nil, ErrBlankPassword
	}

	existing, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	query := r.db.Rebind(`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`)
	_, err = r.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

// GetByUsername returns nil without error when no user matches.
func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := r.db.Rebind(`SELECT id, username, password_hash, created_at FROM users WHERE lower(username) = lower($1)`)
	return r.getOne(ctx, query, strings.TrimSpace(username))
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := r.db.Rebind(`SELECT id, username, password_hash, created_at FROM users WHERE id = $1`)
	return r.getOne(ctx, query, id)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return &user, nil
}

func (r *repository) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
