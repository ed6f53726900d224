// Package staffauth issues and verifies operator tokens. Operators
// (moderators, admins and delivery agents) authenticate with HS256 JWTs scoped
// to one project; customers use opaque tokens instead.
package staffauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-orders/internal/domain"
)

const issuer = "storefront-orders"

var ErrInvalidToken = fmt.Errorf("%w: invalid staff token", domain.ErrUnauthorized)

type Claims struct {
	Role    domain.Role `json:"role"`
	Project string      `json:"project"`
	jwt.RegisteredClaims
}

type Authority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) (*Authority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("staff jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authority{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject acting as role within projectKey.
func (a *Authority) Issue(subject string, role domain.Role, projectKey string) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, domain.Invalid("subject", "subject is required")
	}
	if !role.IsStaff() {
		return "", time.Time{}, domain.Invalid("role", "%q is not a staff role", role)
	}
	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		Role:    role,
		Project: projectKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign staff token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses raw and checks it was issued for projectKey.
func (a *Authority) Verify(raw, projectKey string) (domain.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !claims.Role.IsStaff() || claims.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	if claims.Project != projectKey {
		return domain.Identity{}, fmt.Errorf("%w: token belongs to another project", ErrInvalidToken)
	}
	return domain.Identity{AccountID: claims.Subject, Role: claims.Role}, nil
}

// LooksLikeJWT tells a compact JWT apart from an opaque customer token.
func LooksLikeJWT(raw string) bool {
	return strings.Count(raw, ".") == 2
}
