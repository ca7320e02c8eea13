package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker-api/internal/auth"
	"github.com/yukikurage/task-tracker-api/internal/authz"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/models"
)

// RequireAuth verifies the bearer credential on the request. Missing,
// malformed, expired, and tampered tokens all produce the same 401; the
// sub-reason never crosses the trust boundary.
func RequireAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr := ""
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenStr = parts[1]
		}

		if tokenStr == "" {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Set(constants.ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin gates admin-only routes. Runs after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		if actor.Role != models.RoleAdmin {
			apierrors.Forbidden(c, "Admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetActor retrieves the authenticated identity from the request context.
func GetActor(c *gin.Context) (authz.Actor, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return authz.Actor{}, false
	}
	id, ok := userID.(uint64)
	if !ok {
		return authz.Actor{}, false
	}

	roleValue, exists := c.Get(constants.ContextKeyRole)
	if !exists {
		return authz.Actor{}, false
	}
	role, ok := roleValue.(models.Role)
	if !ok {
		return authz.Actor{}, false
	}

	return authz.Actor{ID: id, Role: role}, true
}
