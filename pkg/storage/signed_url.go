package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const linkAudience = "skillcy-export"

// ErrInvalidLink covers malformed, tampered and expired download tokens.
var ErrInvalidLink = errors.New("storage: invalid download link")

type linkClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// LinkSigner issues and verifies download tokens bound to an owner and a stored file.
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkSigner constructs a signer. A non-positive ttl defaults to 24h.
func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued links stay valid.
func (s *LinkSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token for relPath owned by owner and its expiry.
func (s *LinkSigner) Sign(owner, relPath string) (string, time.Time, error) {
	if owner == "" || relPath == "" {
		return "", time.Time{}, errors.New("owner and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	issued := s.now().UTC()
	expiresAt := issued.Add(s.ttl)
	claims := linkClaims{
		Path: relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			Audience:  jwt.ClaimStrings{linkAudience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download link: %w", err)
	}
	return token, expiresAt, nil
}

// Verify validates token and returns the owner and stored path it grants.
func (s *LinkSigner) Verify(token string) (owner, relPath string, err error) {
	claims := &linkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(linkAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if claims.Subject == "" || claims.Path == "" {
		return "", "", ErrInvalidLink
	}
	return claims.Subject, claims.Path, nil
}
