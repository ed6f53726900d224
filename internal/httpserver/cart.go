package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/service/cart"
)

type cartLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	*domain.Cart
	MergePending bool `json:"mergePending"`
}

func (h *handlers) getCart(c *gin.Context) {
	h.cartOp(c, func(ctx context.Context, owner cart.Owner) (*domain.Cart, error) {
		return h.CartSvc.Get(ctx, owner)
	})
}

func (h *handlers) addCartLine(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	h.cartOp(c, func(ctx context.Context, owner cart.Owner) (*domain.Cart, error) {
		return h.CartSvc.AddLine(ctx, owner, req.ProductID, req.Quantity)
	})
}

func (h *handlers) setCartLine(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	h.cartOp(c, func(ctx context.Context, owner cart.Owner) (*domain.Cart, error) {
		return h.CartSvc.SetLineQuantity(ctx, owner, c.Param("productId"), req.Quantity)
	})
}

func (h *handlers) removeCartLine(c *gin.Context) {
	h.cartOp(c, func(ctx context.Context, owner cart.Owner) (*domain.Cart, error) {
		return h.CartSvc.RemoveLine(ctx, owner, c.Param("productId"))
	})
}

func (h *handlers) clearCart(c *gin.Context) {
	owner, err := h.owner(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.CartSvc.Clear(c.Request.Context(), owner); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// cartOp runs a pending guest merge before the operation so a customer always
// sees one cart.
func (h *handlers) cartOp(c *gin.Context, op func(context.Context, cart.Owner) (*domain.Cart, error)) {
	owner, err := h.owner(c)
	if err != nil {
		writeError(c, err)
		return
	}
	pending := h.mergeGuest(c, owner)
	result, err := op(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Cart: result, MergePending: pending})
}
