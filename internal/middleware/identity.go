package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dencamenew/vsuet-attendance/pkg/errors"
	"github.com/dencamenew/vsuet-attendance/pkg/response"
)

// Context keys populated by the identity middleware.
const (
	CtxUserIDKey   = "userID"
	CtxUserRoleKey = "userRole"
)

// Headers set by the upstream identity layer. Callers never reach this
// service without having been authenticated there first.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Known roles handed down by the identity layer.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Identity propagates the verified caller identity from trusted headers into
// the request context. Requests without an identity are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Set(CtxUserRoleKey, strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))

		c.Next()
	}
}

// RequireRole gates a route on the role the identity layer handed down.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxUserRoleKey) != role {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
