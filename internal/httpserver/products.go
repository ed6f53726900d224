package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handlers) listProducts(c *gin.Context) {
	views, err := h.ProductSvc.List(c.Request.Context(), projectFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": views, "total": len(views)})
}

func (h *handlers) getProduct(c *gin.Context) {
	view, err := h.ProductSvc.Get(c.Request.Context(), projectFrom(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
