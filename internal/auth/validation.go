// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package auth

import "regexp"

// MinPasswordLength is the shortest password accepted at registration and login.
const MinPasswordLength = 5

// Form field names, shared with the HTTP layer.
const (
	FieldEmail     = "email"
	FieldPassword  = "password"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
)

// emailRegex matches local-part@domain, where the domain is one or more
// dot-separated labels of letters, digits and hyphens.
var emailRegex = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9-]+(?:\\.[a-zA-Z0-9-]+)*$")

// ValidateEmail returns a message when email is empty or malformed, "" otherwise.
func ValidateEmail(email string) string {
	if email == "" || !emailRegex.MatchString(email) {
		return "Please enter a valid email address."
	}
	return ""
}

// ValidatePassword returns a message when password is shorter than MinPasswordLength.
func ValidatePassword(password string) string {
	if len(password) < MinPasswordLength {
		return "Please enter a password that is at least 5 characters long."
	}
	return ""
}

// ValidateName returns a message when name is empty.
func ValidateName(name string) string {
	if name == "" {
		return "Please enter a value."
	}
	return ""
}

// ValidationErrors maps a form field to its validation message.
// Fields without a message are absent.
type ValidationErrors map[string]string

// Valid reports whether no field carries a message.
func (v ValidationErrors) Valid() bool {
	return len(v) == 0
}

// add records msg for field unless it is empty.
func (v ValidationErrors) add(field, msg string) {
	if msg != "" {
		v[field] = msg
	}
}

// ValidateLoginForm runs every login validator and collects all failures.
func ValidateLoginForm(form LoginForm) ValidationErrors {
	errs := ValidationErrors{}
	errs.add(FieldEmail, ValidateEmail(form.Email))
	errs.add(FieldPassword, ValidatePassword(form.Password))
	return errs
}

// ValidateRegisterForm runs every registration validator and collects all failures.
func ValidateRegisterForm(form RegisterForm) ValidationErrors {
	errs := ValidationErrors{}
	errs.add(FieldEmail, ValidateEmail(form.Email))
	errs.add(FieldPassword, ValidatePassword(form.Password))
	errs.add(FieldFirstName, ValidateName(form.FirstName))
	errs.add(FieldLastName, ValidateName(form.LastName))
	return errs
}
