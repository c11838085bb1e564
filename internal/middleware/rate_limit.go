package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// idle limiters are dropped once the table grows past this size
const limiterSweepThreshold = 10000

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per actor
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*actorLimiter
	every    time.Duration
	burst    int
	logger   *logrus.Logger
	now      func() time.Time
}

// NewRateLimiter allows requestsPerMinute sustained requests per actor with the given burst
func NewRateLimiter(requestsPerMinute, burst int, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*actorLimiter),
		every:    time.Minute / time.Duration(requestsPerMinute),
		burst:    burst,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.limiters) >= limiterSweepThreshold {
		for k, al := range l.limiters {
			if now.Sub(al.lastSeen) > time.Duration(l.burst)*l.every {
				delete(l.limiters, k)
			}
		}
	}

	al, ok := l.limiters[key]
	if !ok {
		al = &actorLimiter{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.limiters[key] = al
	}
	al.lastSeen = now
	return al.limiter
}

// Middleware limits requests per authenticated actor, falling back to client IP
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userCtx, ok := GetUserContext(c); ok {
			key = "user:" + userCtx.UserID.String()
		}

		if !l.get(key).Allow() {
			l.logger.WithFields(logrus.Fields{
				"actor": key,
				"path":  c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(l.every.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Try again later.",
				"code":    "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
