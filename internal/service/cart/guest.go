package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/service/pricing"
)

const (
	guestBlobVersion = 1
	refreshLimit     = 8
)

// guestBlob is the client-side representation of a guest cart. Rev grows on
// every save, so ID and Rev together name one exact set of lines.
type guestBlob struct {
	Version int         `json:"v"`
	ID      string      `json:"id"`
	Rev     int         `json:"rev"`
	Lines   []guestLine `json:"lines"`
}

type guestLine struct {
	ProductID string              `json:"productId"`
	Quantity  int                 `json:"quantity"`
	Snapshot  domain.LineSnapshot `json:"snapshot"`
	AddedAt   time.Time           `json:"addedAt"`
}

func decodeGuest(raw []byte) (*guestBlob, error) {
	blob := &guestBlob{Version: guestBlobVersion}
	if len(raw) == 0 {
		return blob, nil
	}
	if err := json.Unmarshal(raw, blob); err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}
	lines := blob.Lines[:0]
	for _, l := range blob.Lines {
		if l.ProductID != "" && l.Quantity > 0 {
			lines = append(lines, l)
		}
	}
	blob.Lines = lines
	return blob, nil
}

func (b *guestBlob) find(productID string) int {
	for i := range b.Lines {
		if b.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// guestStore keeps the cart in the caller's LocalStorage. The server never
// persists guest lines.
type guestStore struct {
	products productSource
	logger   *zap.Logger
	now      func() time.Time
}

func (s *guestStore) load(ctx context.Context, owner Owner) (*guestBlob, error) {
	if owner.Local == nil {
		return &guestBlob{Version: guestBlobVersion}, nil
	}
	raw, err := owner.Local.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	blob, err := decodeGuest(raw)
	if err != nil {
		// A corrupt blob is dropped rather than locking the guest out of the cart.
		s.logger.Warn("discarding unreadable guest cart", zap.Error(err))
		return &guestBlob{Version: guestBlobVersion}, nil
	}
	return blob, nil
}

func (s *guestStore) save(ctx context.Context, owner Owner, blob *guestBlob) error {
	if owner.Local == nil {
		return errors.New("guest cart has no local storage")
	}
	if len(blob.Lines) == 0 {
		return owner.Local.Delete(ctx)
	}
	if blob.ID == "" {
		blob.ID = uuid.NewString()
	}
	blob.Rev++
	raw, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return owner.Local.Save(ctx, raw)
}

// Get refreshes every line against the catalog. Lines whose product cannot be
// fetched keep their last snapshot and are flagged stale.
func (s *guestStore) Get(ctx context.Context, owner Owner) (*domain.Cart, error) {
	blob, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	cart := &domain.Cart{
		ProjectID: owner.ProjectID,
		Guest:     true,
		Lines:     make([]domain.CartLine, len(blob.Lines)),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshLimit)
	for i, gl := range blob.Lines {
		i, gl := i, gl
		cart.Lines[i] = domain.CartLine{
			ProductID: gl.ProductID,
			Quantity:  gl.Quantity,
			Snapshot:  gl.Snapshot,
			AddedAt:   gl.AddedAt,
		}
		g.Go(func() error {
			p, err := s.products.GetByID(gctx, owner.ProjectID, gl.ProductID)
			if err != nil {
				s.logger.Debug("guest line refresh failed", zap.String("product_id", gl.ProductID), zap.Error(err))
				cart.Lines[i].Stale = true
				return nil
			}
			cart.Lines[i].Snapshot = pricing.LineSnapshot(*p)
			return nil
		})
	}
	_ = g.Wait()

	for _, l := range cart.Lines {
		if l.AddedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = l.AddedAt
		}
	}
	pricing.Totals(cart)
	return cart, nil
}

func (s *guestStore) AddLine(ctx context.Context, owner Owner, productID string, quantity int) error {
	p, err := s.products.GetByID(ctx, owner.ProjectID, productID)
	if err != nil {
		return err
	}
	blob, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	snap := pricing.LineSnapshot(*p)
	if i := blob.find(p.ID); i >= 0 {
		blob.Lines[i].Quantity += quantity
		blob.Lines[i].Snapshot = snap
	} else {
		blob.Lines = append(blob.Lines, guestLine{ProductID: p.ID, Quantity: quantity, Snapshot: snap, AddedAt: s.now()})
	}
	return s.save(ctx, owner, blob)
}

func (s *guestStore) SetLineQuantity(ctx context.Context, owner Owner, productID string, quantity int) error {
	blob, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	i := blob.find(productID)
	if i < 0 {
		return domain.ErrNotFound
	}
	if quantity <= 0 {
		blob.Lines = append(blob.Lines[:i], blob.Lines[i+1:]...)
	} else {
		blob.Lines[i].Quantity = quantity
	}
	return s.save(ctx, owner, blob)
}

func (s *guestStore) RemoveLine(ctx context.Context, owner Owner, productID string) error {
	blob, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	i := blob.find(productID)
	if i < 0 {
		return nil
	}
	blob.Lines = append(blob.Lines[:i], blob.Lines[i+1:]...)
	return s.save(ctx, owner, blob)
}

func (s *guestStore) Clear(ctx context.Context, owner Owner) error {
	if owner.Local == nil {
		return nil
	}
	return owner.Local.Delete(ctx)
}
