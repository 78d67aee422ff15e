package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limiterRouter(l *SimpleTokenBucket) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	t.Run("exhaustion returns 429", func(t *testing.T) {
		l := NewSimpleTokenBucket(3, 3)
		r := limiterRouter(l)
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, hit(r, ""))
		}
		assert.Equal(t, http.StatusTooManyRequests, hit(r, ""))
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		l := NewSimpleTokenBucket(1, 60)
		clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return clock }
		r := limiterRouter(l)

		assert.Equal(t, http.StatusOK, hit(r, ""))
		assert.Equal(t, http.StatusTooManyRequests, hit(r, ""))

		clock = clock.Add(2 * time.Second) // 60/min refills one token in a second
		assert.Equal(t, http.StatusOK, hit(r, ""))
	})

	t.Run("callers are limited independently", func(t *testing.T) {
		l := NewSimpleTokenBucket(1, 1)
		r := limiterRouter(l)

		assert.Equal(t, http.StatusOK, hit(r, "device-a"))
		assert.Equal(t, http.StatusTooManyRequests, hit(r, "device-a"))
		// A second device behind the same IP still has its own budget.
		assert.Equal(t, http.StatusOK, hit(r, "device-b"))
	})
}
