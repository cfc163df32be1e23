// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

// Package auth provides session-cookie authentication for Kudos.
//
// # Components
//
//   - Validators (ValidateEmail, ValidatePassword, ValidateName) are pure functions.
//   - PasswordHasher hashes with argon2id and still verifies legacy bcrypt digests.
//   - UserRepository is the store gateway; see package auth/postgres.
//   - SessionManager issues and reads the signed, encrypted kudos-session cookie.
//   - Service orchestrates register, login, logout and the session gate.
//
// Service operations never write to the response. They return a Result that
// the transport layer turns into a redirect, a Set-Cookie header or a JSON body.
package auth
