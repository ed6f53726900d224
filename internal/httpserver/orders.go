package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
	ordersvc "storefront-orders/internal/service/order"
)

const idempotencyHeader = "Idempotency-Key"

type checkoutRequest struct {
	Source           domain.OrderSource     `json:"source"`
	Lines            []ordersvc.LineInput   `json:"lines"`
	ProductID        string                 `json:"productId"`
	Quantity         int                    `json:"quantity"`
	PaymentMethod    string                 `json:"paymentMethod"`
	Delivery         ordersvc.DeliveryInput `json:"delivery"`
	Card             *ordersvc.CardInput    `json:"card"`
	ContactConsent   bool                   `json:"contactConsent"`
	ClientTotalCents *int64                 `json:"totalCents"`
}

type orderResponse struct {
	*domain.Order
	TrackingCode string `json:"trackingCode"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{Order: o, TrackingCode: o.TrackingCode()}
}

type checkoutResponse struct {
	orderResponse
	MergePending bool `json:"mergePending"`
}

type listResponse[T any] struct {
	Results []T `json:"results"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

type assignRequest struct {
	AgentID string `json:"agentId" binding:"required"`
	Notes   string `json:"notes"`
}

type deliveryStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type consentRequest struct {
	ContactConsent bool `json:"contactConsent"`
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	owner, err := h.owner(c)
	if err != nil {
		writeError(c, err)
		return
	}
	// A customer checking out a cart orders the merged cart. When the merge
	// cannot run now the server cart is ordered and the guest cart stays put.
	pending := false
	if req.Source != domain.SourceBuyNow && req.ProductID == "" {
		pending = h.mergeGuest(c, owner)
	}
	o, err := h.OrderSvc.Checkout(c.Request.Context(), ordersvc.CheckoutInput{
		Identity:         identityFrom(c),
		Owner:            owner,
		Source:           req.Source,
		Lines:            req.Lines,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		PaymentMethod:    req.PaymentMethod,
		Delivery:         req.Delivery,
		Card:             req.Card,
		ContactConsent:   req.ContactConsent,
		ClientTotalCents: req.ClientTotalCents,
		IdempotencyKey:   c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{orderResponse: toOrderResponse(o), MergePending: pending})
}

func (h *handlers) listOrders(c *gin.Context) {
	filter, ok := orderFilterFromQuery(c)
	if !ok {
		return
	}
	h.writeOrderList(c, filter)
}

func (h *handlers) writeOrderList(c *gin.Context, filter domain.OrderFilter) {
	orders, total, err := h.OrderSvc.List(c.Request.Context(), projectFrom(c).ID, filter, identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	results := make([]orderResponse, 0, len(orders))
	for i := range orders {
		results = append(results, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, listResponse[orderResponse]{Results: results, Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.OrderSvc.Get(c.Request.Context(), projectFrom(c).ID, c.Param("id"), identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *handlers) transitionOrder(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	o, err := h.OrderSvc.Transition(c.Request.Context(), projectFrom(c).ID, c.Param("id"), domain.OrderStatus(req.Status), identityFrom(c))
	h.writeOrder(c, o, err)
}

func (h *handlers) assignOrderDelivery(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "agentId is required")
		return
	}
	o, err := h.OrderSvc.AssignDelivery(c.Request.Context(), projectFrom(c).ID, c.Param("id"), req.AgentID, req.Notes, identityFrom(c))
	h.writeOrder(c, o, err)
}

func (h *handlers) updateDeliveryStatus(c *gin.Context) {
	var req deliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	o, err := h.OrderSvc.UpdateDeliveryStatus(c.Request.Context(), projectFrom(c).ID, c.Param("id"), domain.DeliveryStatus(req.Status), req.Notes, identityFrom(c))
	h.writeOrder(c, o, err)
}

func (h *handlers) setOrderConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	o, err := h.OrderSvc.SetContactConsent(c.Request.Context(), projectFrom(c).ID, c.Param("id"), req.ContactConsent, identityFrom(c))
	h.writeOrder(c, o, err)
}

func (h *handlers) writeOrder(c *gin.Context, o *domain.Order, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func orderFilterFromQuery(c *gin.Context) (domain.OrderFilter, bool) {
	limit, offset, ok := paging(c)
	if !ok {
		return domain.OrderFilter{}, false
	}
	return domain.OrderFilter{
		Status:     domain.OrderStatus(c.Query("status")),
		CustomerID: c.Query("customerId"),
		AgentID:    c.Query("agentId"),
		Limit:      limit,
		Offset:     offset,
	}, true
}

// paging reads limit and offset. Missing values fall back to the repository
// defaults.
func paging(c *gin.Context) (int, int, bool) {
	var limit, offset int
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, domain.Invalid("limit", "must be a non-negative integer"))
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, domain.Invalid("offset", "must be a non-negative integer"))
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
