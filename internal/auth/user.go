// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package auth

import (
	"context"
	"time"
)

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"-"`
}

// Profile holds the data collected alongside the credentials.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UserRepository is the persistence backend for users.
// Implementations must be safe for concurrent use.
type UserRepository interface {
	// CountByEmail returns how many users are registered with email.
	CountByEmail(ctx context.Context, email string) (int, error)

	// GetByEmail retrieves a user by email, including the password hash.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID. PasswordHash is never populated.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id string) (*User, error)

	// Create stores a new user and returns it with its generated ID.
	// Returns an error wrapping ErrEmailTaken on a uniqueness conflict.
	Create(ctx context.Context, email, passwordHash string, profile Profile) (*User, error)
}
