package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/service/cart"
	customersvc "storefront-orders/internal/service/customer"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	Customer *domain.Customer `json:"customer"`
	customersvc.Session
	MergedLines  int  `json:"mergedLines"`
	MergePending bool `json:"mergePending"`
}

func (h *handlers) signup(c *gin.Context) {
	var req customersvc.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	project := projectFrom(c)
	cust, session, err := h.CustomerSvc.Signup(c.Request.Context(), project.ID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.signedIn(c, cust, session))
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	project := projectFrom(c)
	cust, session, err := h.CustomerSvc.Login(c.Request.Context(), project.ID, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.signedIn(c, cust, session))
}

// signedIn merges whatever the guest collected before signing in. A failed
// merge leaves the cookie intact and is retried on the next cart request.
func (h *handlers) signedIn(c *gin.Context, cust *domain.Customer, session customersvc.Session) sessionResponse {
	resp := sessionResponse{Customer: cust, Session: session}
	if h.CartSvc == nil {
		return resp
	}
	project := projectFrom(c)
	owner := cart.Owner{
		ProjectID:  project.ID,
		CustomerID: cust.ID,
		Local:      newCookieStorage(c, h.GuestCookie, project.Key, h.CookieSecure),
	}
	if !h.CartSvc.HasGuestLines(c.Request.Context(), owner.Local) {
		return resp
	}
	n, err := h.CartSvc.Merge(c.Request.Context(), owner)
	if err != nil {
		_ = c.Error(err)
		resp.MergePending = true
		return resp
	}
	resp.MergedLines = n
	return resp
}

func (h *handlers) me(c *gin.Context) {
	cust, ok := customerFrom(c)
	if !ok {
		who := identityFrom(c)
		if who.IsGuest() {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"identity": who})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identityFrom(c), "customer": cust})
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refreshToken is required")
		return
	}
	cust, session, err := h.CustomerSvc.Refresh(c.Request.Context(), projectFrom(c).ID, req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Customer: cust, Session: session})
}

// logout revokes the presented access token and, when sent, the refresh token.
func (h *handlers) logout(c *gin.Context) {
	if identityFrom(c).Role != domain.RoleCustomer {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	access := bearerToken(c.GetHeader("Authorization"))
	if err := h.CustomerSvc.Logout(c.Request.Context(), projectFrom(c).ID, access, req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) updateMe(c *gin.Context) {
	who := identityFrom(c)
	if who.Role != domain.RoleCustomer {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	var req customersvc.ContactInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cust, err := h.CustomerSvc.UpdateContact(c.Request.Context(), projectFrom(c).ID, who.AccountID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": who, "customer": cust})
}

func (h *handlers) myOrders(c *gin.Context) {
	who := identityFrom(c)
	if who.Role != domain.RoleCustomer {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	filter, ok := orderFilterFromQuery(c)
	if !ok {
		return
	}
	filter.CustomerID = who.AccountID
	h.writeOrderList(c, filter)
}
