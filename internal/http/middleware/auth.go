// README: Bearer-token auth middleware; stores caller uid/role in the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"drivebook/internal/apperr"
	"drivebook/internal/infra"
)

const (
	ctxCallerUID  = "caller_uid"
	ctxCallerRole = "caller_role"
)

// Roles carried in the token's role claim.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleDriver   = "driver"
	RoleLead     = "lead"
)

// Auth verifies the Authorization: Bearer <token> header. A token without a
// role claim is treated as a customer.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, apperr.Unauthenticated, "missing bearer token")
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil || token == nil || token.UID == "" {
			abort(c, http.StatusUnauthorized, apperr.Unauthenticated, "invalid token")
			return
		}
		role := strings.ToLower(strings.TrimSpace(token.Role))
		if role == "" {
			role = RoleCustomer
		}
		c.Set(ctxCallerUID, token.UID)
		c.Set(ctxCallerRole, role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles. Must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}
	return func(c *gin.Context) {
		role := CallerRole(c)
		if role == "" {
			abort(c, http.StatusUnauthorized, apperr.Unauthenticated, "missing caller role")
			return
		}
		if _, ok := allowed[role]; !ok {
			abort(c, http.StatusForbidden, apperr.Unauthorized, "role not permitted")
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxCallerRole)
}

func abort(c *gin.Context, status int, kind apperr.Kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"code":       kind,
		"request_id": GetRequestID(c),
	})
}
