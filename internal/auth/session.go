// Package auth implements password hashing, stateless session tokens,
// and the role/capability model used by the HTTP layer.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "nas_session"

// SessionMaxAge bounds how long an issued session stays valid.
const SessionMaxAge = 8 * time.Hour

var (
	// ErrInvalidSession means the token signature or shape is wrong.
	ErrInvalidSession = errors.New("invalid session token")
	// ErrExpiredSession means the token was genuine but too old.
	ErrExpiredSession = errors.New("expired session token")
)

// Session is the decoded identity carried by a valid token.
// Roles and roots are copied from the user record at login time and do
// not change until re-login or expiry.
type Session struct {
	Username string
	Roles    []string
	Roots    []string
	IssuedAt time.Time
}

// HasRole reports whether the session carries the given role.
func (s *Session) HasRole(role string) bool {
	return s != nil && hasRole(s.Roles, role)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
	Roots []string `json:"roots,omitempty"`
}

// Codec signs and verifies session tokens. It is stateless: a token is
// a pure function of the secret, the payload, and the clock.
type Codec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewCodec builds a Codec with the default max age.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, maxAge: SessionMaxAge, now: time.Now}
}

// Encode mints a signed token for username with the given roles and
// allowed roots.
func (c *Codec) Encode(username string, roles, roots []string) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	now := c.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
		Roles: roles,
		Roots: roots,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// Decode verifies a token and returns the session it carries.
// Tampering yields ErrInvalidSession; a genuine but stale token yields
// ErrExpiredSession. Callers treat both as unauthenticated.
func (c *Codec) Decode(token string) (*Session, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		return nil, ErrInvalidSession
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	sess := &Session{
		Username: claims.Subject,
		Roles:    claims.Roles,
		Roots:    claims.Roots,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	return sess, nil
}
