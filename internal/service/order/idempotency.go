package order

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront-orders/internal/domain"
)

// idempotencyScope ties a checkout key to its caller. Customers are scoped by
// account. Guests have no server-side identity that survives the checkout
// being retried (it discards their cart blob), so they are scoped by the
// digits of the delivery phone they submit.
func idempotencyScope(in CheckoutInput) string {
	if in.Identity.Role == domain.RoleCustomer && in.Identity.AccountID != "" {
		return "customer:" + in.Identity.AccountID
	}
	return "guest:" + domain.PhoneDigits(in.Delivery.Phone)
}

type fingerprintLine struct {
	ProductID string `json:"p"`
	Quantity  int    `json:"q"`
}

// requestFingerprint hashes what the caller submitted. Lines read from the
// cart on the server are left out: a retried checkout finds that cart empty.
func requestFingerprint(in CheckoutInput) string {
	lines := make([]fingerprintLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, fingerprintLine{ProductID: strings.TrimSpace(l.ProductID), Quantity: l.Quantity})
	}
	var cardHolder, cardLast4, cardExpiry string
	if in.Card != nil {
		digits := domain.PhoneDigits(in.Card.Number)
		if len(digits) >= 4 {
			cardLast4 = digits[len(digits)-4:]
		}
		cardHolder, cardExpiry = strings.TrimSpace(in.Card.Holder), strings.TrimSpace(in.Card.Expiry)
	}
	payload := struct {
		Source     string            `json:"source"`
		Lines      []fingerprintLine `json:"lines"`
		ProductID  string            `json:"productId"`
		Quantity   int               `json:"quantity"`
		Payment    string            `json:"payment"`
		Contact    domain.Contact    `json:"contact"`
		Notes      string            `json:"notes"`
		CardHolder string            `json:"cardHolder"`
		CardLast4  string            `json:"cardLast4"`
		CardExpiry string            `json:"cardExpiry"`
		Consent    bool              `json:"consent"`
	}{
		Source:     string(in.Source),
		Lines:      lines,
		ProductID:  strings.TrimSpace(in.ProductID),
		Quantity:   in.Quantity,
		Payment:    strings.ToLower(strings.TrimSpace(in.PaymentMethod)),
		Contact:    trimContact(in.Delivery),
		Notes:      strings.TrimSpace(in.Delivery.Notes),
		CardHolder: cardHolder,
		CardLast4:  cardLast4,
		CardExpiry: cardExpiry,
		Consent:    in.ContactConsent,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// replay returns the order already created under key in scope, or nil when
// there is none. A key reused for a different request is refused.
func (s *Service) replay(ctx context.Context, projectID, scope, key, fingerprint string) (*domain.Order, error) {
	existing, err := s.orders.GetByIdempotencyKey(ctx, projectID, scope, key)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if existing.RequestFingerprint != "" && existing.RequestFingerprint != fingerprint {
		s.logger.Warn("idempotency key reused with a different request",
			zap.String("order_id", existing.ID), zap.String("idempotency_key", key))
		return nil, fmt.Errorf("%w: key %q", domain.ErrIdempotencyMismatch, key)
	}
	s.logger.Info("checkout replayed", zap.String("order_id", existing.ID), zap.String("idempotency_key", key))
	return existing, nil
}
