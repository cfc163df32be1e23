// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

// Package web is the HTTP transport for the auth core. Handlers decode
// requests, call auth.Service and write the returned auth.Result.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kudos-app/kudos/internal/auth"
)

// AuthService is the part of auth.Service the handlers use.
type AuthService interface {
	RequireUserID(r *http.Request, redirectTo string) auth.Result
	GetUser(ctx context.Context, r *http.Request) auth.Result
	Logout(r *http.Request) auth.Result
	Register(ctx context.Context, form auth.RegisterForm) auth.Result
	Login(ctx context.Context, form auth.LoginForm) auth.Result
}

var _ AuthService = (*auth.Service)(nil)

// Handler serves the login page actions and the protected index.
type Handler struct {
	auth     AuthService
	logger   *slog.Logger
	recorder RequestRecorder
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithRequestRecorder counts requests by route and status.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc AuthService, opts ...Option) *Handler {
	h := &Handler{auth: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Routes returns the application router.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", h.loginPage)
	mux.HandleFunc("POST /login", h.loginAction)
	mux.HandleFunc("POST /logout", h.logout)
	mux.Handle("GET /{$}", RequireUser(h.auth, http.HandlerFunc(h.index)))
	return instrument(h.logger, h.recorder, mux)
}

type loginPageBody struct {
	Form       string `json:"form"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// loginPage describes the login form to the page layer. Logged-in users
// are sent home.
func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if result := h.auth.RequireUserID(r, ""); result.Kind == auth.ResultSuccess {
		http.Redirect(w, r, auth.DefaultPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, loginPageBody{
		Form:       auth.ActionLogin,
		RedirectTo: r.URL.Query().Get("redirectTo"),
	})
}

// loginAction dispatches the _action field to login or register.
func (h *Handler) loginAction(w http.ResponseWriter, r *http.Request) {
	sub, failure := ParseAction(w, r)
	if failure != nil {
		h.logger.InfoContext(r.Context(), "rejected form submission", "error", failure.Err)
		WriteResult(w, r, *failure)
		return
	}

	ctx := r.Context()
	var result auth.Result
	switch {
	case sub.Login != nil:
		if errs := auth.ValidateLoginForm(*sub.Login); !errs.Valid() {
			result = auth.ValidationFailure(sub.Action, errs, sub.Login.Fields())
			break
		}
		result = h.auth.Login(ctx, *sub.Login)
	case sub.Register != nil:
		if errs := auth.ValidateRegisterForm(*sub.Register); !errs.Valid() {
			result = auth.ValidationFailure(sub.Action, errs, sub.Register.Fields())
			break
		}
		result = h.auth.Register(ctx, *sub.Register)
	}
	WriteResult(w, r, result)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	WriteResult(w, r, h.auth.Logout(r))
}

type indexBody struct {
	User *auth.User `json:"user"`
}

// index returns the logged-in user. A session whose user vanished is
// logged out by GetUser.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	result := h.auth.GetUser(r.Context(), r)
	if result.IsRedirect() {
		WriteResult(w, r, result)
		return
	}
	if result.User == nil {
		WriteResult(w, r, h.auth.RequireUserID(r, ""))
		return
	}
	writeJSON(w, http.StatusOK, indexBody{User: result.User})
}
