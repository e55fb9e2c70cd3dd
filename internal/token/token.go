// Package token issues and verifies the short-lived signed tokens used
// for WebSocket admission (spec §4.7).
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dentalgw/internal/kinds"
)

// Scope is the device role a token authorizes.
type Scope string

const (
	ScopeDesktop Scope = "desktop"
	ScopeMobile  Scope = "mobile"
)

// Claims is the token payload: {sub, scope, exp, channel?} per spec §4.7.
type Claims struct {
	jwt.RegisteredClaims
	Scope   Scope  `json:"scope"`
	Channel string `json:"channel,omitempty"`
}

// Issuer signs admission tokens with a single HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer. ttl is applied to every issued token.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// IssueDesktop mints a desktop-scoped token for subject sub.
func (i *Issuer) IssueDesktop(sub string) (string, time.Time, error) {
	return i.issue(sub, ScopeDesktop, "")
}

// IssueMobile mints a mobile-scoped token pinned to channelID.
func (i *Issuer) IssueMobile(sub, channelID string) (string, time.Time, error) {
	return i.issue(sub, ScopeMobile, channelID)
}

func (i *Issuer) issue(sub string, scope Scope, channelID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Scope:   scope,
		Channel: channelID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verifier checks a token's signature, expiry, and scope.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier sharing the Issuer's secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses raw and returns its claims if the signature and expiry
// are valid and the scope is desktop or mobile. It does not enforce
// scope-specific rules — callers check those (e.g. that a mobile token's
// channel claim matches the channel being joined) themselves.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, kinds.ErrTokenExpired
		}
		return nil, kinds.ErrInvalidToken
	}
	if !tok.Valid {
		return nil, kinds.ErrInvalidToken
	}
	if claims.Scope != ScopeDesktop && claims.Scope != ScopeMobile {
		return nil, kinds.ErrInvalidToken
	}
	return &claims, nil
}

// AllowsChannel reports whether a verified mobile token is pinned to
// channelID. Desktop tokens are never channel-pinned and always pass.
func (c *Claims) AllowsChannel(channelID string) bool {
	if c.Scope == ScopeDesktop {
		return true
	}
	return c.Channel == channelID
}
