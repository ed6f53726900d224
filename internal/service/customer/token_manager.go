package customer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"storefront-orders/internal/domain"
	tokenrepo "storefront-orders/internal/repository/token"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"

	tokenBytes    = 32
	issueAttempts = 5
)

// grant is what a stored customer token proves.
type grant struct {
	CustomerID string
	ProjectID  string
	ExpiresAt  time.Time
}

// tokenManager issues opaque customer tokens. Operator tokens are JWTs and
// never pass through here. Refresh tokens are single use: redeeming one
// deletes it.
type tokenManager struct {
	repo tokenrepo.Repository
	now  func() time.Time
}

func newTokenManager(repo tokenrepo.Repository) *tokenManager {
	return &tokenManager{repo: repo, now: time.Now}
}

func (m *tokenManager) issue(ctx context.Context, projectID, customerID, kind string, ttl time.Duration) (string, error) {
	expiresAt := m.now().Add(ttl)
	for i := 0; i < issueAttempts; i++ {
		raw, err := randomToken()
		if err != nil {
			return "", err
		}
		err = m.repo.Create(ctx, tokenrepo.Token{
			Token:      raw,
			ProjectID:  projectID,
			CustomerID: customerID,
			Kind:       kind,
			ExpiresAt:  expiresAt,
		})
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return "", fmt.Errorf("store %s token: %w", kind, err)
		}
	}
	return "", errors.New("token collision")
}

// check returns the grant behind raw when it is a live token of kind within
// projectID. Expired tokens are deleted on sight.
func (m *tokenManager) check(ctx context.Context, projectID, raw, kind string) (grant, bool) {
	if raw == "" {
		return grant{}, false
	}
	stored, err := m.repo.Get(ctx, raw)
	if err != nil {
		return grant{}, false
	}
	if stored.Kind != kind || stored.CustomerID == "" || stored.ProjectID != projectID {
		return grant{}, false
	}
	if m.now().After(stored.ExpiresAt) {
		_ = m.repo.Delete(ctx, raw)
		return grant{}, false
	}
	return grant{CustomerID: stored.CustomerID, ProjectID: stored.ProjectID, ExpiresAt: stored.ExpiresAt}, true
}

// redeem consumes a refresh token.
func (m *tokenManager) redeem(ctx context.Context, projectID, raw string) (grant, bool) {
	g, ok := m.check(ctx, projectID, raw, kindRefresh)
	if !ok {
		return grant{}, false
	}
	if err := m.repo.Delete(ctx, raw); err != nil {
		return grant{}, false
	}
	return g, true
}

// revoke deletes raw if it belongs to projectID. Unknown tokens are ignored.
func (m *tokenManager) revoke(ctx context.Context, projectID, raw string) error {
	stored, err := m.repo.Get(ctx, raw)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.ProjectID != projectID {
		return nil
	}
	if err := m.repo.Delete(ctx, raw); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
