package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/staffauth"
)

type ctxKey string

const (
	projectCtxKey  ctxKey = "project"
	identityCtxKey ctxKey = "identity"
	customerCtxKey ctxKey = "customer"
)

// projectMiddleware resolves :projectKey and stores the project in the
// request context.
func projectMiddleware(repo projectRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.Param("projectKey"))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: "project key is required"})
			return
		}
		project, err := repo.GetByKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "project not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "failed to load project"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), projectCtxKey, project)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// identityMiddleware turns the Authorization header into a domain.Identity.
// A compact JWT is a staff token, anything else is a customer access token,
// and no header at all is a guest.
func identityMiddleware(customers customerService, staff staffVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		who := domain.Guest()

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw != "" {
			project := projectFrom(c)
			switch {
			case staffauth.LooksLikeJWT(raw):
				if staff == nil {
					abortError(c, staffauth.ErrInvalidToken)
					return
				}
				id, err := staff.Verify(raw, project.Key)
				if err != nil {
					abortError(c, err)
					return
				}
				who = id
			default:
				if customers == nil {
					abortError(c, domain.ErrUnauthorized)
					return
				}
				cust, err := customers.LookupByToken(ctx, project.ID, raw)
				if err != nil {
					abortError(c, err)
					return
				}
				who = domain.Identity{AccountID: cust.ID, Role: domain.RoleCustomer}
				ctx = context.WithValue(ctx, customerCtxKey, cust)
			}
		}

		ctx = context.WithValue(ctx, identityCtxKey, who)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func projectFrom(c *gin.Context) *domain.Project {
	if p, ok := c.Request.Context().Value(projectCtxKey).(*domain.Project); ok {
		return p
	}
	return &domain.Project{}
}

func identityFrom(c *gin.Context) domain.Identity {
	if id, ok := c.Request.Context().Value(identityCtxKey).(domain.Identity); ok {
		return id
	}
	return domain.Guest()
}

func customerFrom(c *gin.Context) (*domain.Customer, bool) {
	cust, ok := c.Request.Context().Value(customerCtxKey).(*domain.Customer)
	return cust, ok && cust != nil
}
