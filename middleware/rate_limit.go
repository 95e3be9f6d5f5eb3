package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vnkhanh/matchday-server/models"
)

const sweepEvery = time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyedLimiter giữ một token bucket cho mỗi key (IP hoặc user).
// Bucket không dùng quá idle sẽ bị xoá bởi goroutine sweep.
type KeyedLimiter struct {
	every rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter: perMinute request mỗi phút cho từng key, cho phép dồn tối đa burst.
func NewKeyedLimiter(perMinute, burst int, idle time.Duration) *KeyedLimiter {
	l := &KeyedLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		idle:    idle,
		buckets: map[string]*bucket{},
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop tắt goroutine sweep. Gọi nhiều lần không sao.
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// reserve lấy một token cho key; trả về false và thời gian chờ nếu hết.
func (l *KeyedLimiter) reserve(key string) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (l *KeyedLimiter) sweep() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-t.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.seen) > l.idle {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware chặn request khi key(c) hết token, kèm header Retry-After (giây).
func (l *KeyedLimiter) Middleware(key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.reserve(key(c))
		if ok {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"message": "Too Many Requests",
			"hint":    "Please try again in a few minutes.",
		})
	}
}

// RateLimitByIP dùng c.ClientIP() làm key (có xét X-Forwarded-For nếu đã cấu hình TrustedProxies).
func RateLimitByIP(l *KeyedLimiter) gin.HandlerFunc {
	return l.Middleware(func(c *gin.Context) string { return "ip:" + c.ClientIP() })
}

// RateLimitByUser dùng user đã đăng nhập làm key, chưa đăng nhập thì theo IP.
// Phải đứng sau AuthJWT.
func RateLimitByUser(l *KeyedLimiter) gin.HandlerFunc {
	return l.Middleware(func(c *gin.Context) string {
		if v, ok := c.Get(CtxUser); ok {
			if u, ok := v.(models.User); ok {
				return "user:" + strconv.FormatUint(uint64(u.ID), 10)
			}
		}
		return "ip:" + c.ClientIP()
	})
}

// NewAuthLimiter cho login/register: 10 lần/phút mỗi IP, burst 5.
func NewAuthLimiter() *KeyedLimiter {
	return NewKeyedLimiter(10, 5, 5*time.Minute)
}

// NewMatchCreateLimiter cho POST /api/matches: 20 lần/phút mỗi user, burst 5.
func NewMatchCreateLimiter() *KeyedLimiter {
	return NewKeyedLimiter(20, 5, 5*time.Minute)
}
