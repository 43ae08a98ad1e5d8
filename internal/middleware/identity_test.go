package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newIdentityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Identity())
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"role":    c.GetString(CtxUserRoleKey),
		})
	})
	r.GET("/teacher-only", RequireRole(RoleTeacher), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestIdentityRejectsMissingHeader(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentityPropagatesCaller(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "max-42")
	req.Header.Set(HeaderUserRole, "Student")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "max-42")
	require.Contains(t, w.Body.String(), `"role":"student"`)
}

func TestRequireRole(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teacher-only", nil)
	req.Header.Set(HeaderUserID, "max-1")
	req.Header.Set(HeaderUserRole, RoleStudent)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/teacher-only", nil)
	req.Header.Set(HeaderUserID, "max-1")
	req.Header.Set(HeaderUserRole, RoleTeacher)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
