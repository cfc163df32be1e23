// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when an email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Error codes attached to oops errors returned by this package.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeStoreFailed        = "AUTH_STORE_FAILED"
	CodeHashFailed         = "AUTH_HASH_FAILED"
	CodeSessionFailed      = "AUTH_SESSION_FAILED"
)

// User-facing messages. Login failures share one message whatever the cause.
const (
	MsgInvalidCredentials = "Please check your email and password."
	MsgEmailTaken         = "An account with that email already exists."
	MsgRegisterFailed     = "Something went wrong trying to create a new user."
	MsgLoginFailed        = "Something went wrong trying to log in."
	MsgInvalidFormData    = "Invalid Form Data"
)
