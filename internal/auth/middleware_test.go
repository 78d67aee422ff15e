package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authTestRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Require("secret", "shop-attendance", roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c)})
	})
	return r
}

func employeeToken(t *testing.T) string {
	t.Helper()
	pair, err := Issue("emp-1", RoleEmployee, "shop-attendance", "secret", time.Minute, time.Hour)
	require.NoError(t, err)
	return pair.AccessToken
}

func TestRequire(t *testing.T) {
	t.Run("bearer header accepted", func(t *testing.T) {
		r := authTestRouter(RoleEmployee)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+employeeToken(t))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "emp-1")
	})

	t.Run("session cookie fallback", func(t *testing.T) {
		r := authTestRouter(RoleEmployee)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: employeeToken(t)})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no credentials", func(t *testing.T) {
		r := authTestRouter(RoleEmployee)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message": "Employee access required"}`, w.Body.String())
	})

	t.Run("employee token on admin route", func(t *testing.T) {
		r := authTestRouter(RoleAdmin)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+employeeToken(t))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message": "Admin access required"}`, w.Body.String())
	})
}
