// Package auth verifies player credentials and issues the identity tokens
// that carry a player between requests.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway absorbs clock skew between issuing and validating hosts.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when a token fails signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token's exp is in the past.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptySubject is returned when issuing a token without a user or session.
	ErrEmptySubject = errors.New("user and session ids are required")
)

// Claims are the identity token claims. Subject is the user ID and ID (jti)
// is the auth session the token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// TokenIssuer signs HS256 identity tokens. Tokens are always signed with
// the current secret and validate against either current or previous, so a
// secret can be rotated without logging everyone out.
type TokenIssuer struct {
	current  []byte
	previous []byte
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
}

func NewTokenIssuer(current, previous string, ttl time.Duration) *TokenIssuer {
	t := &TokenIssuer{
		current: []byte(current),
		ttl:     ttl,
		leeway:  DefaultLeeway,
		now:     time.Now,
	}
	if previous != "" {
		t.previous = []byte(previous)
	}
	return t
}

// TTL is how long issued tokens stay valid.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue returns a signed token for the user's auth session and its expiry.
func (t *TokenIssuer) Issue(userID, sessionID, name string) (string, time.Time, error) {
	if userID == "" || sessionID == "" {
		return "", time.Time{}, ErrEmptySubject
	}

	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.current)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Validate parses the token and returns its claims.
func (t *TokenIssuer) Validate(token string) (*Claims, error) {
	claims, err := t.parse(token, t.current)
	if err == nil {
		return claims, nil
	}
	if t.previous != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		if claims, perr := t.parse(token, t.previous); perr == nil {
			return claims, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (t *TokenIssuer) parse(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(t.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
