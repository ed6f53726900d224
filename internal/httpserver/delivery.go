package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/service/delivery"
)

type identifierRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

type resolutionResponse struct {
	Outcome    delivery.Outcome `json:"outcome"`
	Identifier string           `json:"identifier"`
	Matches    int              `json:"matches"`
	Order      *orderResponse   `json:"order,omitempty"`
}

// resolveDelivery answers found, not_found or ambiguous with 200. Only bad
// input and missing permissions are errors here.
func (h *handlers) resolveDelivery(c *gin.Context) {
	identifier := c.Param("identifier")
	if identifier == "" {
		var req identifierRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "identifier is required")
			return
		}
		identifier = req.Identifier
	}
	res, err := h.DeliverySvc.Resolve(c.Request.Context(), projectFrom(c).ID, identifier, identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := resolutionResponse{Outcome: res.Outcome, Identifier: res.Identifier, Matches: res.Matches}
	if res.Order != nil {
		o := toOrderResponse(res.Order)
		resp.Order = &o
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) claimDelivery(c *gin.Context) {
	var req identifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "identifier is required")
		return
	}
	o, err := h.DeliverySvc.Claim(c.Request.Context(), projectFrom(c).ID, req.Identifier, identityFrom(c))
	h.writeOrder(c, o, err)
}

func (h *handlers) orderQR(c *gin.Context) {
	size := 256
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			badRequest(c, "size must be between 64 and 1024")
			return
		}
		size = n
	}
	o, err := h.OrderSvc.Get(c.Request.Context(), projectFrom(c).ID, c.Param("id"), identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	png, err := delivery.TrackingQR(o, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
