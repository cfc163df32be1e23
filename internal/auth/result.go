// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package auth

import "net/http"

// Form actions submitted in the _action field.
const (
	ActionLogin    = "login"
	ActionRegister = "register"
)

// ResultKind distinguishes the outcomes of an auth operation.
type ResultKind int

// Result kinds.
const (
	ResultSuccess ResultKind = iota
	ResultRedirect
	ResultValidationFailure
	ResultError
)

// String returns the kind name used in logs and metrics.
func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultRedirect:
		return "redirect"
	case ResultValidationFailure:
		return "validation_failure"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is what every Service operation returns. The caller decides how
// to transmit it; nothing is written to the response by the service.
type Result struct {
	Kind     ResultKind
	Status   int
	Location string       // redirect target, for ResultRedirect
	Cookie   *http.Cookie // Set-Cookie instruction, may be nil
	Body     *ResponseBody
	UserID   string // set by a successful RequireUserID
	User     *User  // set by a successful GetUser; nil when anonymous
	Err      error  // internal cause, never sent to the client
}

// ResponseBody is the JSON payload of a failed submission.
type ResponseBody struct {
	Error  string            `json:"error,omitempty"`
	Errors ValidationErrors  `json:"errors,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Form   string            `json:"form,omitempty"`
}

// IsRedirect reports whether r tells the caller to redirect.
func (r Result) IsRedirect() bool {
	return r.Kind == ResultRedirect
}

// Redirect builds a 302 result with an optional cookie.
func Redirect(location string, cookie *http.Cookie) Result {
	return Result{
		Kind:     ResultRedirect,
		Status:   http.StatusFound,
		Location: location,
		Cookie:   cookie,
	}
}

// Failure builds an error result carrying a client payload and an internal cause.
func Failure(status int, body *ResponseBody, err error) Result {
	return Result{
		Kind:   ResultError,
		Status: status,
		Body:   body,
		Err:    err,
	}
}

// ValidationFailure builds a 400 result listing every invalid field.
func ValidationFailure(form string, errs ValidationErrors, fields map[string]string) Result {
	return Result{
		Kind:   ResultValidationFailure,
		Status: http.StatusBadRequest,
		Body: &ResponseBody{
			Errors: errs,
			Fields: fields,
			Form:   form,
		},
	}
}

// LoginForm holds submitted login credentials.
type LoginForm struct {
	Email    string
	Password string
}

// Fields returns the values that may be echoed back to the client.
func (f LoginForm) Fields() map[string]string {
	return map[string]string{FieldEmail: f.Email}
}

// RegisterForm holds a submitted registration.
type RegisterForm struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Fields returns the values that may be echoed back to the client.
// The password is never included.
func (f RegisterForm) Fields() map[string]string {
	return map[string]string{
		FieldEmail:     f.Email,
		FieldFirstName: f.FirstName,
		FieldLastName:  f.LastName,
	}
}
