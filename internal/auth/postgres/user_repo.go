// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/kudos-app/kudos/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repository needs.
type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

var _ auth.UserRepository = (*UserRepository)(nil)

// CountByEmail returns the number of users with exactly this email.
func (r *UserRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&count)
	if err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").
			With("operation", "count users by email").
			Wrap(err)
	}
	return count, nil
}

// GetByEmail retrieves a user, including the password hash.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, profile, created_at
		FROM users
		WHERE email = $1
	`, email)

	var (
		user        auth.User
		profileJSON []byte
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &profileJSON, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	if err := decodeProfile(profileJSON, &user.Profile); err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").With("id", user.ID).Wrap(err)
	}
	return &user, nil
}

// GetByID retrieves a user without the password hash. Malformed IDs
// cannot exist and are reported as not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*auth.User, error) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, email, profile, created_at
		FROM users
		WHERE id = $1
	`, id)

	var (
		user        auth.User
		profileJSON []byte
	)
	err := row.Scan(&user.ID, &user.Email, &profileJSON, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	if err := decodeProfile(profileJSON, &user.Profile); err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").With("id", id).Wrap(err)
	}
	return &user, nil
}

// Create inserts a user with a new ULID.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, profile auth.Profile) (*auth.User, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "marshal profile").
			Wrap(err)
	}

	user := &auth.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Profile:      profile,
	}

	var createdAt time.Time
	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, profile)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, user.ID, email, passwordHash, profileJSON).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("USER_EMAIL_TAKEN").
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrEmailTaken)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	user.CreatedAt = createdAt
	return user, nil
}

func decodeProfile(data []byte, profile *auth.Profile) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, profile); err != nil {
		return oops.With("operation", "unmarshal profile").Wrap(err)
	}
	return nil
}
