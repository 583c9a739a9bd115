package middleware

import (
	"context"
	"net/http"
	"strings"

	"libraryhub_go/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by RequireRole
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextToken  = "token"
)

// TokenCookie is the cookie carrying the session token
const TokenCookie = "token"

// TokenVerifier turns a raw token into a verified subject and role
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, role models.Role, err error)
}

// TokenFromRequest reads a bearer token, falling back to the token cookie
func TokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// RequireRole admits only requests whose token verifies and carries role
func RequireRole(verifier TokenVerifier, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
			return
		}

		subject, tokenRole, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			DebugLogger("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		if !allowed(role, tokenRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}

		c.Set(ContextUserID, subject)
		c.Set(ContextRole, tokenRole)
		c.Set(ContextToken, token)
		c.Next()
	}
}

func allowed(required, actual models.Role) bool {
	switch required {
	case models.RoleAdmin:
		return actual == models.RoleAdmin
	case models.RoleStudent:
		return actual == models.RoleStudent
	default:
		return false
	}
}

// CurrentRole returns the role stored by RequireRole
func CurrentRole(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ContextRole)
	if !ok {
		return 0, false
	}
	role, ok := v.(models.Role)
	return role, ok
}
