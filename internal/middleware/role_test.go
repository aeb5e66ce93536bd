package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func roleRouter(role string, setRole bool, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if setRole {
			c.Set(ContextUserRole, role)
		}
	})
	r.GET("/admin", RequireRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func getAdmin(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	r := roleRouter("admin", true, "admin", "organizer")
	assert.Equal(t, http.StatusOK, getAdmin(r))
}

func TestRequireRoleForbidsOtherRoles(t *testing.T) {
	r := roleRouter("author", true, "admin")
	assert.Equal(t, http.StatusForbidden, getAdmin(r))
}

func TestRequireRoleUnauthorizedWithoutContext(t *testing.T) {
	r := roleRouter("", false, "admin")
	assert.Equal(t, http.StatusUnauthorized, getAdmin(r))
}
