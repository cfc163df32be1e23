// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kudos-app/kudos/pkg/errutil"
)

var tracer = otel.Tracer("kudos/auth")

// Paths the service redirects to.
const (
	LoginPath   = "/login"
	DefaultPath = "/"
)

// Outcomes reported to the Recorder.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeConflict           = "conflict"
	OutcomeStoreError         = "store_error"
	OutcomeInternalError      = "internal_error"
)

// Session lookup results reported to the Recorder.
const (
	LookupAnonymous  = "anonymous"
	LookupFound      = "found"
	LookupMissing    = "missing"
	LookupStoreError = "store_error"
)

// Recorder receives auth events for metrics.
type Recorder interface {
	RecordAuthAttempt(action, outcome string)
	RecordSessionLookup(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthAttempt(string, string) {}
func (nopRecorder) RecordSessionLookup(string)       {}

// dummyPasswordHash is verified when a user doesn't exist so that login
// takes the same time either way. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides the register, login, logout and session gate operations.
// It is the only entry point the HTTP layer calls.
type Service struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	logger   *slog.Logger
	recorder Recorder

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRecorder sets the metrics recorder. Defaults to a no-op.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	if s.recorder == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("recorder cannot be nil")
	}
	return s, nil
}

// RequireUserID returns the session's user ID, or a redirect to the login
// page carrying redirectTo as the return destination. An empty redirectTo
// means the request path.
func (s *Service) RequireUserID(r *http.Request, redirectTo string) Result {
	if userID, ok := s.sessions.Read(r).UserID(); ok {
		return Result{Kind: ResultSuccess, Status: http.StatusOK, UserID: userID}
	}
	if redirectTo == "" {
		redirectTo = r.URL.Path
	}
	params := url.Values{"redirectTo": {redirectTo}}
	return Redirect(LoginPath+"?"+params.Encode(), nil)
}

// GetUser resolves the session's user. Anonymous requests succeed with a
// nil User. If the lookup fails or the user no longer exists the session
// is torn down exactly as Logout does.
func (s *Service) GetUser(ctx context.Context, r *http.Request) Result {
	session := s.sessions.Read(r)
	userID, ok := session.UserID()
	if !ok {
		s.recorder.RecordSessionLookup(LookupAnonymous)
		return Result{Kind: ResultSuccess, Status: http.StatusOK}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recorder.RecordSessionLookup(LookupMissing)
			s.logger.WarnContext(ctx, "session refers to missing user, logging out", "user_id", userID)
		} else {
			s.recorder.RecordSessionLookup(LookupStoreError)
			errutil.LogErrorContext(ctx, s.logger, "session user lookup failed, logging out",
				oops.Code(CodeStoreFailed).With("operation", "get user by id").With("user_id", userID).Wrap(err))
		}
		result := s.destroy(session)
		result.Err = err
		return result
	}

	s.recorder.RecordSessionLookup(LookupFound)
	user.PasswordHash = ""
	return Result{Kind: ResultSuccess, Status: http.StatusOK, UserID: user.ID, User: user}
}

// Logout destroys the current session, whether or not one exists, and
// redirects to the login page.
func (s *Service) Logout(r *http.Request) Result {
	return s.destroy(s.sessions.Read(r))
}

func (s *Service) destroy(session *Session) Result {
	return Redirect(LoginPath, s.sessions.Destroy(session))
}

// Register creates a user and logs them in. The email must not be registered yet.
func (s *Service) Register(ctx context.Context, form RegisterForm) Result {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()

	result := s.register(ctx, form)
	endSpan(span, result)
	return result
}

func (s *Service) register(ctx context.Context, form RegisterForm) Result {
	count, err := s.users.CountByEmail(ctx, form.Email)
	if err != nil {
		return s.storeFailure(ctx, ActionRegister, MsgRegisterFailed, form.Fields(),
			oops.Code(CodeStoreFailed).With("operation", "count users by email").Wrap(err))
	}
	if count > 0 {
		return s.conflict(ctx, form, oops.Code(CodeEmailTaken).With("operation", "count users by email").Wrap(ErrEmailTaken))
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		err = oops.Code(CodeHashFailed).With("operation", "hash password").Wrap(err)
		errutil.LogErrorContext(ctx, s.logger, "registration failed", err)
		s.recorder.RecordAuthAttempt(ActionRegister, OutcomeInternalError)
		return Failure(http.StatusBadRequest, &ResponseBody{Error: MsgRegisterFailed, Fields: form.Fields()}, err)
	}

	user, err := s.users.Create(ctx, form.Email, hash, Profile{FirstName: form.FirstName, LastName: form.LastName})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return s.conflict(ctx, form, oops.Code(CodeEmailTaken).With("operation", "create user").Wrap(err))
		}
		return s.storeFailure(ctx, ActionRegister, MsgRegisterFailed, form.Fields(),
			oops.Code(CodeStoreFailed).With("operation", "create user").Wrap(err))
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.authenticated(ctx, ActionRegister, user.ID)
}

// Login verifies credentials and issues a session. Unknown emails and wrong
// passwords produce the same response.
func (s *Service) Login(ctx context.Context, form LoginForm) Result {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	result := s.login(ctx, form)
	endSpan(span, result)
	return result
}

func (s *Service) login(ctx context.Context, form LoginForm) Result {
	user, err := s.users.GetByEmail(ctx, form.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Still verify so the response time matches a wrong password.
			_, _ = s.hasher.Verify(form.Password, s.dummyDigest())
			return s.invalidCredentials(ctx, "unknown email")
		}
		return s.storeFailure(ctx, ActionLogin, MsgLoginFailed, form.Fields(),
			oops.Code(CodeStoreFailed).With("operation", "get user by email").Wrap(err))
	}

	valid, err := s.hasher.Verify(form.Password, user.PasswordHash)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "stored password hash is unreadable",
			oops.Code(CodeHashFailed).With("operation", "verify password").With("user_id", user.ID).Wrap(err))
		return s.invalidCredentials(ctx, "unreadable hash")
	}
	if !valid {
		return s.invalidCredentials(ctx, "password mismatch")
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return s.authenticated(ctx, ActionLogin, user.ID)
}

// CreateUserSession issues a fresh session for userID, replacing any
// existing one, and redirects to redirectTo.
func (s *Service) CreateUserSession(userID, redirectTo string) Result {
	if redirectTo == "" {
		redirectTo = DefaultPath
	}
	cookie, err := s.sessions.Create(userID)
	if err != nil {
		return Failure(http.StatusInternalServerError, &ResponseBody{Error: MsgLoginFailed},
			oops.Code(CodeSessionFailed).With("operation", "create session").Wrap(err))
	}
	return Redirect(redirectTo, cookie)
}

func (s *Service) authenticated(ctx context.Context, action, userID string) Result {
	result := s.CreateUserSession(userID, DefaultPath)
	if result.Kind == ResultError {
		errutil.LogErrorContext(ctx, s.logger, "session creation failed", result.Err)
		s.recorder.RecordAuthAttempt(action, OutcomeInternalError)
		return result
	}
	s.recorder.RecordAuthAttempt(action, OutcomeSuccess)
	return result
}

// invalidCredentials carries no submitted fields so that every cause
// serializes to the same bytes.
func (s *Service) invalidCredentials(ctx context.Context, reason string) Result {
	s.logger.InfoContext(ctx, "login rejected", "reason", reason)
	s.recorder.RecordAuthAttempt(ActionLogin, OutcomeInvalidCredentials)
	return Failure(http.StatusBadRequest, &ResponseBody{Error: MsgInvalidCredentials},
		oops.Code(CodeInvalidCredentials).Errorf("invalid email or password"))
}

func (s *Service) conflict(ctx context.Context, form RegisterForm, err error) Result {
	s.logger.InfoContext(ctx, "registration rejected", "reason", "email already registered")
	s.recorder.RecordAuthAttempt(ActionRegister, OutcomeConflict)
	return Failure(http.StatusBadRequest, &ResponseBody{Error: MsgEmailTaken, Fields: form.Fields()}, err)
}

func (s *Service) storeFailure(ctx context.Context, action, msg string, fields map[string]string, err error) Result {
	errutil.LogErrorContext(ctx, s.logger, action+" failed", err)
	s.recorder.RecordAuthAttempt(action, OutcomeStoreError)
	return Failure(http.StatusBadRequest, &ResponseBody{Error: msg, Fields: fields}, err)
}

// endSpan records the result kind and marks failures on span.
func endSpan(span trace.Span, result Result) {
	span.SetAttributes(attribute.String("auth.result", result.Kind.String()))
	if result.Kind == ResultError && result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, errutil.Code(result.Err))
	}
}

// dummyDigest returns a digest produced with the hasher's own work factor,
// falling back to a fixed one if hashing fails.
func (s *Service) dummyDigest() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("kudos-dummy-password")
		if err != nil {
			hash = dummyPasswordHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
