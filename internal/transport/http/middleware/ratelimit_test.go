package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func perIPEngine(rps rate.Limit, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitPerIP(rps, burst))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func hitFrom(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerIP(t *testing.T) {
	t.Run("burst then reject", func(t *testing.T) {
		r := perIPEngine(1, 2)
		assert.Equal(t, "pong", hitFrom(r, "10.0.0.1").Body.String())
		assert.Equal(t, "pong", hitFrom(r, "10.0.0.1").Body.String())
		// 桶耗尽：统一信封，body 不再是 pong
		assert.Contains(t, hitFrom(r, "10.0.0.1").Body.String(), "too many requests")
	})

	t.Run("independent per ip", func(t *testing.T) {
		r := perIPEngine(1, 1)
		assert.Equal(t, "pong", hitFrom(r, "10.0.0.1").Body.String())
		assert.Contains(t, hitFrom(r, "10.0.0.1").Body.String(), "too many requests")
		// 另一个 IP 不受影响
		assert.Equal(t, "pong", hitFrom(r, "10.0.0.2").Body.String())
	})
}

func TestSweepIPBuckets(t *testing.T) {
	now := time.Now()
	buckets := make(map[string]*ipBucket)
	for i := 0; i < 100; i++ {
		buckets[fmt.Sprintf("10.0.0.%d", i)] = &ipBucket{
			lim:  rate.NewLimiter(1, 1),
			seen: now.Add(-ipBucketIdle - time.Minute), // 全部超过空闲阈值
		}
	}
	buckets["10.0.1.1"] = &ipBucket{lim: rate.NewLimiter(1, 1), seen: now}

	sweepIPBuckets(buckets, now)

	require.Len(t, buckets, 1)
	_, kept := buckets["10.0.1.1"]
	assert.True(t, kept)
}
