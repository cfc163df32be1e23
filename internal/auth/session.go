// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package auth

import (
	"crypto/sha256"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// Session cookie configuration.
const (
	SessionCookieName = "kudos-session"
	SessionMaxAge     = 30 * 24 * time.Hour // 2592000 seconds
)

const sessionUserIDKey = "userId"

// HKDF info strings; one key pair is derived per configured secret.
var (
	hashKeyInfo  = []byte("kudos-session/v1/hmac-sha256")
	blockKeyInfo = []byte("kudos-session/v1/aes-256")
)

// SessionConfig configures the session cookie.
type SessionConfig struct {
	// Secrets sign and encrypt the cookie. The first secret is used for new
	// cookies; all of them are accepted when decoding, to allow rotation.
	Secrets []string

	// Secure sets the Secure cookie attribute. Enable in production.
	Secure bool

	// MaxAge overrides SessionMaxAge when positive.
	MaxAge time.Duration
}

// Session is the decoded content of a session cookie.
// The zero value is an anonymous session.
type Session struct {
	values map[string]any
}

// UserID returns the user ID stored in the session.
// Returns false if the value is missing, empty or not a string.
func (s *Session) UserID() (string, bool) {
	if s == nil || s.values == nil {
		return "", false
	}
	userID, ok := s.values[sessionUserIDKey].(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// SessionManager issues, reads and destroys signed, encrypted session cookies.
// It holds no per-request state and is safe for concurrent use.
type SessionManager struct {
	codecs []securecookie.Codec
	maxAge time.Duration
	secure bool
}

// NewSessionManager creates a SessionManager.
// Returns an error if no non-empty secret is configured.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = SessionMaxAge
	}

	var codecs []securecookie.Codec
	for _, secret := range cfg.Secrets {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		hashKey, blockKey, err := deriveSessionKeys(secret)
		if err != nil {
			return nil, err
		}
		codec := securecookie.New(hashKey, blockKey).
			MaxAge(int(maxAge / time.Second)).
			SetSerializer(securecookie.JSONEncoder{})
		codecs = append(codecs, codec)
	}

	if len(codecs) == 0 {
		return nil, oops.Code("SESSION_SECRET_MISSING").Errorf("SESSION_SECRET must be set")
	}

	return &SessionManager{
		codecs: codecs,
		maxAge: maxAge,
		secure: cfg.Secure,
	}, nil
}

// deriveSessionKeys expands a secret into a 64-byte HMAC key and a 32-byte AES key.
func deriveSessionKeys(secret string) (hashKey, blockKey []byte, err error) {
	hashKey = make([]byte, 64)
	if _, err = io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hashKeyInfo), hashKey); err != nil {
		return nil, nil, oops.Code("SESSION_KEY_DERIVATION_FAILED").With("key", "hash").Wrap(err)
	}
	blockKey = make([]byte, 32)
	if _, err = io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, blockKeyInfo), blockKey); err != nil {
		return nil, nil, oops.Code("SESSION_KEY_DERIVATION_FAILED").With("key", "block").Wrap(err)
	}
	return hashKey, blockKey, nil
}

// Create issues a fresh session cookie holding only userID.
func (m *SessionManager) Create(userID string) (*http.Cookie, error) {
	if userID == "" {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be empty")
	}

	value, err := m.codecs[0].Encode(SessionCookieName, map[string]any{sessionUserIDKey: userID})
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	cookie := m.baseCookie()
	cookie.Value = value
	cookie.MaxAge = int(m.maxAge / time.Second)
	cookie.Expires = time.Now().Add(m.maxAge).UTC()
	return cookie, nil
}

// Read decodes the session cookie of r.
// Missing, tampered, expired or undecodable cookies yield an anonymous session.
func (m *SessionManager) Read(r *http.Request) *Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return &Session{}
	}
	return m.decode(cookie.Value)
}

// ReadHeader decodes the session from a raw Cookie header value.
func (m *SessionManager) ReadHeader(header string) *Session {
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return &Session{}
	}
	for _, c := range cookies {
		if c.Name == SessionCookieName {
			return m.decode(c.Value)
		}
	}
	return &Session{}
}

func (m *SessionManager) decode(value string) *Session {
	values := map[string]any{}
	if err := securecookie.DecodeMulti(SessionCookieName, value, &values, m.codecs...); err != nil {
		return &Session{}
	}
	return &Session{values: values}
}

// Destroy returns a cookie that clears the session in the browser.
// The session is accepted only for symmetry; cookies are stateless.
func (m *SessionManager) Destroy(_ *Session) *http.Cookie {
	cookie := m.baseCookie()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	return cookie
}

func (m *SessionManager) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
