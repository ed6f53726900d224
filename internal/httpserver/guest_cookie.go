package httpserver

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/service/cart"
)

const (
	guestCookieMaxAge = 30 * 24 * 60 * 60
	// Browsers cap a cookie around 4KB including its name and attributes.
	guestCookieMaxLen = 3800
)

// cookieStorage keeps the guest cart blob in a per-project cookie. The blob is
// cached for the rest of the request so reads after a write see the write.
type cookieStorage struct {
	c      *gin.Context
	name   string
	secure bool

	loaded bool
	blob   []byte
}

func newCookieStorage(c *gin.Context, base, projectKey string, secure bool) *cookieStorage {
	return &cookieStorage{c: c, name: base + "_" + projectKey, secure: secure}
}

func (s *cookieStorage) Load(_ context.Context) ([]byte, error) {
	if s.loaded {
		return s.blob, nil
	}
	s.loaded = true
	raw, err := s.c.Cookie(s.name)
	if err != nil || raw == "" {
		return nil, nil
	}
	blob, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// The cart service discards blobs it cannot decode.
		return []byte(raw), nil
	}
	s.blob = blob
	return blob, nil
}

func (s *cookieStorage) Save(_ context.Context, blob []byte) error {
	encoded := base64.RawURLEncoding.EncodeToString(blob)
	if len(encoded) > guestCookieMaxLen {
		return domain.Invalid("cart", "guest cart is full; sign in to add more items")
	}
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(s.name, encoded, guestCookieMaxAge, "/", "", s.secure, true)
	s.loaded, s.blob = true, blob
	return nil
}

func (s *cookieStorage) Delete(_ context.Context) error {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
	s.loaded, s.blob = true, nil
	return nil
}

// owner builds the cart owner for the caller. Staff callers have no cart.
func (h *handlers) owner(c *gin.Context) (cart.Owner, error) {
	who := identityFrom(c)
	project := projectFrom(c)
	if who.Role.IsStaff() {
		return cart.Owner{}, domain.ErrForbidden
	}
	owner := cart.Owner{
		ProjectID: project.ID,
		Local:     newCookieStorage(c, h.GuestCookie, project.Key, h.CookieSecure),
	}
	if who.Role == domain.RoleCustomer {
		owner.CustomerID = who.AccountID
	}
	return owner, nil
}

// mergeGuest folds a leftover guest cookie into the customer's server cart.
// It reports whether a guest cart is still pending after the attempt.
func (h *handlers) mergeGuest(c *gin.Context, owner cart.Owner) bool {
	if owner.IsGuest() || owner.Local == nil {
		return false
	}
	ctx := c.Request.Context()
	if !h.CartSvc.HasGuestLines(ctx, owner.Local) {
		return false
	}
	if _, err := h.CartSvc.Merge(ctx, owner); err != nil {
		_ = c.Error(err)
		return true
	}
	return false
}
