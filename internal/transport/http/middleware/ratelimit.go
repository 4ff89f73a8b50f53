package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	resp "go-task-manager/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "too many requests"))
	}
}

const (
	ipBucketIdle  = 10 * time.Minute // 空闲超过这时长的桶在下次清扫时回收
	ipBucketSweep = 4096             // 桶数到这个水位才触发清扫
)

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func sweepIPBuckets(buckets map[string]*ipBucket, now time.Time) {
	for ip, b := range buckets {
		if now.Sub(b.seen) > ipBucketIdle {
			delete(buckets, ip)
		}
	}
}

// RateLimitPerIP 每 IP 限速；登录/注册等入口用它防爆破。
// 桶表有上限：到水位就回收空闲桶，防止被海量源 IP 撑爆内存
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*ipBucket)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		b, ok := buckets[ip]
		if !ok {
			if len(buckets) >= ipBucketSweep {
				sweepIPBuckets(buckets, now)
			}
			b = &ipBucket{lim: rate.NewLimiter(rps, burst)}
			buckets[ip] = b
		}
		b.seen = now
		mu.Unlock()

		if b.lim.Allow() {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "too many requests"))
	}
}
