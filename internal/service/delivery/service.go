// Package delivery maps scanned or typed identifiers to exactly one order for
// hand-off to a delivery agent.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
)

const (
	fullIDLength     = 26
	minIdentifierLen = 6
	// suffixScanLimit only needs to tell one match from many.
	suffixScanLimit = 2
	defaultQRSize   = 256
)

// Outcome is the tagged result of a lookup.
type Outcome string

const (
	Found     Outcome = "found"
	NotFound  Outcome = "not_found"
	Ambiguous Outcome = "ambiguous"
)

type Resolution struct {
	Outcome    Outcome       `json:"outcome"`
	Identifier string        `json:"identifier"`
	Order      *domain.Order `json:"order,omitempty"`
	Matches    int           `json:"matches"`
}

type orderFinder interface {
	GetByID(ctx context.Context, projectID, id string) (*domain.Order, error)
	FindBySuffix(ctx context.Context, projectID, suffix string, limit int) ([]domain.Order, error)
}

type orderClaimer interface {
	Claim(ctx context.Context, projectID, id string, who domain.Identity) (*domain.Order, error)
}

type Service struct {
	orders  orderFinder
	claimer orderClaimer
	logger  *zap.Logger
}

func New(orders orderFinder, claimer orderClaimer, logger *zap.Logger) *Service {
	return &Service{orders: orders, claimer: claimer, logger: logging.OrNop(logger).Named("delivery")}
}

// Normalize reduces a scanned payload or typed code to the bare upper-case
// identifier. It accepts a URL carrying the code as a "code" query parameter
// or as its last path segment, an optional ORD- prefix, separators, and the
// Crockford look-alikes I, L and O.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			if code := u.Query().Get("code"); code != "" {
				s = code
			} else {
				parts := strings.Split(strings.Trim(u.Path, "/"), "/")
				s = parts[len(parts)-1]
			}
		}
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "ORD-")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		case 'I', 'L':
			return '1'
		case 'O':
			return '0'
		}
		return r
	}, s)

	if len(s) < minIdentifierLen {
		return "", domain.Invalid("identifier", "identifier must have at least %d characters", minIdentifierLen)
	}
	if len(s) > fullIDLength {
		return "", domain.Invalid("identifier", "identifier is longer than an order id")
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEFGHJKMNPQRSTVWXYZ", r) {
			return "", domain.Invalid("identifier", "identifier contains %q", r)
		}
	}
	return s, nil
}

func requireStaff(who domain.Identity) error {
	if !who.Role.IsStaff() || who.AccountID == "" {
		return fmt.Errorf("%w: delivery lookup is for staff", domain.ErrForbidden)
	}
	return nil
}

// Resolve tries a direct lookup for full identifiers and a suffix scan for
// shorter ones. NotFound and Ambiguous are outcomes, not errors.
func (s *Service) Resolve(ctx context.Context, projectID, identifier string, who domain.Identity) (Resolution, error) {
	if err := requireStaff(who); err != nil {
		return Resolution{}, err
	}
	id, err := Normalize(identifier)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Identifier: id, Outcome: NotFound}

	if len(id) == fullIDLength {
		// No suffix scan on a miss: ids are fullIDLength long, so a suffix of
		// that length can only match the id itself.
		o, err := s.orders.GetByID(ctx, projectID, id)
		switch {
		case err == nil:
			res.Outcome, res.Order, res.Matches = Found, o, 1
		case !isNotFound(err):
			return Resolution{}, fmt.Errorf("lookup order: %w", err)
		}
		s.logResolution(res, who)
		return res, nil
	}

	matches, err := s.orders.FindBySuffix(ctx, projectID, id, suffixScanLimit)
	if err != nil {
		return Resolution{}, fmt.Errorf("scan order suffix: %w", err)
	}
	res.Matches = len(matches)
	switch len(matches) {
	case 0:
	case 1:
		res.Outcome, res.Order = Found, &matches[0]
	default:
		res.Outcome = Ambiguous
	}
	s.logResolution(res, who)
	return res, nil
}

// ResolveOrder is Resolve with non-found outcomes mapped onto errors.
func (s *Service) ResolveOrder(ctx context.Context, projectID, identifier string, who domain.Identity) (*domain.Order, error) {
	res, err := s.Resolve(ctx, projectID, identifier, who)
	if err != nil {
		return nil, err
	}
	switch res.Outcome {
	case Found:
		return res.Order, nil
	case Ambiguous:
		return nil, fmt.Errorf("%w: %s matches more than one order", domain.ErrAmbiguousIdentifier, res.Identifier)
	}
	return nil, fmt.Errorf("order %s: %w", res.Identifier, domain.ErrNotFound)
}

// Claim resolves identifier and starts processing the order when an operator
// has assigned it to the calling agent.
func (s *Service) Claim(ctx context.Context, projectID, identifier string, who domain.Identity) (*domain.Order, error) {
	o, err := s.ResolveOrder(ctx, projectID, identifier, who)
	if err != nil {
		return nil, err
	}
	return s.claimer.Claim(ctx, projectID, o.ID, who)
}

// TrackingQR renders the order's tracking code as a PNG QR image.
func TrackingQR(o *domain.Order, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(o.TrackingCode(), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func (s *Service) logResolution(res Resolution, who domain.Identity) {
	s.logger.Info("identifier resolved", zap.String("identifier", res.Identifier),
		zap.String("outcome", string(res.Outcome)), zap.Int("matches", res.Matches),
		zap.String("actor", who.AccountID), zap.String("role", string(who.Role)))
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
