package rbac

import (
	"net/http"

	"citizen-engagement/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller holds any of the provided roles.
// It only gates the route; per-action decisions belong to internal/policy.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, err := auth.Roles(c.Request.Context())
		if err != nil || len(roles) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !HasAnyRole(roles, allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
