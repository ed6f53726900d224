package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
	requestsvc "storefront-orders/internal/service/request"
)

func (h *handlers) createOrderRequest(c *gin.Context) {
	var req requestsvc.OrderRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	r, err := h.RequestSvc.CreateOrderRequest(c.Request.Context(), projectFrom(c).ID, identityFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *handlers) createInquiry(c *gin.Context) {
	var req requestsvc.InquiryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	r, err := h.RequestSvc.CreateInquiry(c.Request.Context(), projectFrom(c).ID, identityFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *handlers) listRequests(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	filter := domain.RequestFilter{
		Kind:    domain.RequestKind(c.Query("kind")),
		Status:  domain.RequestStatus(c.Query("status")),
		AgentID: c.Query("agentId"),
		Limit:   limit,
		Offset:  offset,
	}
	results, total, err := h.RequestSvc.List(c.Request.Context(), projectFrom(c).ID, filter, identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if results == nil {
		results = []domain.Request{}
	}
	c.JSON(http.StatusOK, listResponse[domain.Request]{Results: results, Total: total, Limit: limit, Offset: offset})
}

func (h *handlers) getRequest(c *gin.Context) {
	r, err := h.RequestSvc.Get(c.Request.Context(), projectFrom(c).ID, c.Param("id"), identityFrom(c))
	h.writeRequest(c, r, err)
}

func (h *handlers) transitionRequest(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	r, err := h.RequestSvc.Transition(c.Request.Context(), projectFrom(c).ID, c.Param("id"), domain.RequestStatus(req.Status), identityFrom(c))
	h.writeRequest(c, r, err)
}

func (h *handlers) assignRequestDelivery(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "agentId is required")
		return
	}
	r, err := h.RequestSvc.AssignDelivery(c.Request.Context(), projectFrom(c).ID, c.Param("id"), req.AgentID, req.Notes, identityFrom(c))
	h.writeRequest(c, r, err)
}

func (h *handlers) writeRequest(c *gin.Context, r *domain.Request, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
