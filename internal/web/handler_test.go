// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudos-app/kudos/internal/auth"
	"github.com/kudos-app/kudos/internal/web"
)

// memUsers is an in-memory auth.UserRepository.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*auth.User
	failAll error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*auth.User{}}
}

func (m *memUsers) CountByEmail(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, m.failAll
	}
	n := 0
	for _, u := range m.byID {
		if u.Email == email {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, email, hash string, profile auth.Profile) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	u := &auth.User{ID: ulid.Make().String(), Email: email, PasswordHash: hash, Profile: profile}
	m.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) delete(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.Email == email {
			delete(m.byID, id)
		}
	}
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordHTTPRequest(route string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[route+" "+http.StatusText(status)]++
}

type testApp struct {
	users    *memUsers
	handler  http.Handler
	recorder *countingRecorder
	logs     *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	users := newMemUsers()
	sessions, err := auth.NewSessionManager(auth.SessionConfig{Secrets: []string{"web-test-secret"}})
	require.NoError(t, err)
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	svc, err := auth.NewService(users, sessions, hasher, auth.WithLogger(logger))
	require.NoError(t, err)

	rec := &countingRecorder{}
	h := web.NewHandler(svc, web.WithLogger(logger), web.WithRequestRecorder(rec))
	return &testApp{users: users, handler: h.Routes(), recorder: rec, logs: logs}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) post(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return a.do(req)
}

func (a *testApp) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return a.do(req)
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.SessionCookieName)
	return nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func registerForm() url.Values {
	return url.Values{
		"_action":   {"register"},
		"email":     {"ada@example.com"},
		"password":  {"correct-horse"},
		"firstName": {"Ada"},
		"lastName":  {"Lovelace"},
	}
}

func loginForm(email, password string) url.Values {
	return url.Values{"_action": {"login"}, "email": {email}, "password": {password}}
}

func TestRegisterAndVisitIndex(t *testing.T) {
	app := newTestApp(t)

	rr := app.post("/login", registerForm())
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 2592000, cookie.MaxAge)

	rr = app.get("/", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, map[string]any{"firstName": "Ada", "lastName": "Lovelace"}, user["profile"])
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRegister_ValidationReturnsAllMessages(t *testing.T) {
	app := newTestApp(t)

	rr := app.post("/login", url.Values{
		"_action":   {"register"},
		"email":     {"not-an-email"},
		"password":  {"abc"},
		"firstName": {""},
		"lastName":  {""},
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
	body := decodeBody(t, rr)
	assert.Equal(t, "register", body["form"])

	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, errs, 4)
	for _, field := range []string{"email", "password", "firstName", "lastName"} {
		assert.NotEmpty(t, errs[field], field)
	}

	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "not-an-email", fields["email"])
	assert.NotContains(t, fields, "password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusFound, app.post("/login", registerForm()).Code)

	rr := app.post("/login", registerForm())
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
	assert.Equal(t, auth.MsgEmailTaken, decodeBody(t, rr)["error"])
}

func TestRegister_StoreFailure(t *testing.T) {
	app := newTestApp(t)
	app.users.failAll = errors.New("db down")

	rr := app.post("/login", registerForm())
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
	assert.Equal(t, auth.MsgRegisterFailed, decodeBody(t, rr)["error"])
	assert.NotContains(t, rr.Body.String(), "db down")
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusFound, app.post("/login", registerForm()).Code)

	t.Run("success", func(t *testing.T) {
		rr := app.post("/login", loginForm("ada@example.com", "correct-horse"))
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
		sessionCookie(t, rr)
	})

	t.Run("wrong password and unknown email are byte-identical", func(t *testing.T) {
		wrong := app.post("/login", loginForm("ada@example.com", "wrong-password"))
		unknown := app.post("/login", loginForm("nobody@example.com", "wrong-password"))

		assert.Equal(t, http.StatusBadRequest, wrong.Code)
		assert.Equal(t, http.StatusBadRequest, unknown.Code)
		assert.Empty(t, wrong.Result().Cookies())
		assert.Empty(t, unknown.Result().Cookies())
		assert.Equal(t, wrong.Body.Bytes(), unknown.Body.Bytes())
		assert.JSONEq(t, `{"error":"Please check your email and password."}`, wrong.Body.String())
	})

	t.Run("validation", func(t *testing.T) {
		rr := app.post("/login", loginForm("bad", "x"))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "login", body["form"])
		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Len(t, errs, 2)
	})

	t.Run("password never logged", func(t *testing.T) {
		assert.NotContains(t, app.logs.String(), "correct-horse")
		assert.NotContains(t, app.logs.String(), "wrong-password")
	})
}

func TestMalformedSubmissions(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name     string
		form     url.Values
		wantForm string
	}{
		{"missing password field", url.Values{"_action": {"login"}, "email": {"a@b.co"}}, "login"},
		{"missing name fields", url.Values{"_action": {"register"}, "email": {"a@b.co"}, "password": {"hunter2"}}, "register"},
		{"repeated field", url.Values{"_action": {"login"}, "email": {"a@b.co", "c@d.co"}, "password": {"hunter2"}}, "login"},
		{"unknown action", url.Values{"_action": {"delete"}}, ""},
		{"no action", url.Values{"email": {"a@b.co"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.post("/login", tt.form)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, "Invalid Form Data", body["error"])
			if tt.wantForm == "" {
				assert.NotContains(t, body, "form")
			} else {
				assert.Equal(t, tt.wantForm, body["form"])
			}
		})
	}

	t.Run("oversized body", func(t *testing.T) {
		big := url.Values{"_action": {"login"}, "email": {strings.Repeat("a", 100<<10)}, "password": {"x"}}
		rr := app.post("/login", big)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid Form Data", decodeBody(t, rr)["error"])
	})
}

func TestIndex_RequiresSession(t *testing.T) {
	app := newTestApp(t)

	rr := app.get("/")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?redirectTo=%2F", rr.Header().Get("Location"))
}

func TestIndex_SessionForDeletedUser(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(t, app.post("/login", registerForm()))
	app.users.delete("ada@example.com")

	rr := app.get("/", cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	expired := sessionCookie(t, rr)
	assert.Negative(t, expired.MaxAge)
}

func TestLogoutThenProtectedPage(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(t, app.post("/login", registerForm()))
	require.Equal(t, http.StatusOK, app.get("/", cookie).Code)

	rr := app.post("/logout", nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	expired := sessionCookie(t, rr)
	assert.Negative(t, expired.MaxAge)
	assert.Empty(t, expired.Value)

	// The browser drops the cookie; the next visit is anonymous.
	rr = app.get("/")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?redirectTo=%2F", rr.Header().Get("Location"))

	// Replaying the expired cookie value is also anonymous.
	rr = app.get("/", expired)
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestLoginPage(t *testing.T) {
	app := newTestApp(t)

	rr := app.get("/login?redirectTo=%2Fkudos")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"form":"login","redirectTo":"/kudos"}`, rr.Body.String())

	cookie := sessionCookie(t, app.post("/login", registerForm()))
	rr = app.get("/login", cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestInstrumentation(t *testing.T) {
	app := newTestApp(t)

	app.get("/")
	app.get("/nope")
	app.post("/login", loginForm("bad", "x"))

	assert.Equal(t, 1, app.recorder.counts["GET /{$} Found"])
	assert.Equal(t, 1, app.recorder.counts["unmatched Not Found"])
	assert.Equal(t, 1, app.recorder.counts["POST /login Bad Request"])

	logs, err := io.ReadAll(app.logs)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"msg":"http request"`)
	assert.Contains(t, string(logs), `"route":"POST /login"`)
}
