package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/port"
)

const (
	rateLimitProblemType  = "https://unimart.example.com/problems/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// KeyFunc derives the bucket a request is counted against. Returning false exempts the request
// from that limit, e.g. when the body carries no email.
type KeyFunc func(*gin.Context) (string, bool)

// Limit is a sliding-window budget of Max requests per Window for each key.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	Key    KeyFunc
}

// RateLimiter enforces Limits backed by a port.RateLimitStore.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	Limit      string `json:"limit"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a limiter over store.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ByClientIP keys a limit on the caller's address.
func ByClientIP() KeyFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// ByEmail keys a limit on the "email" field of a JSON body, trimmed the same way the identity
// service trims it. The body is restored for the handler.
func ByEmail() KeyFunc {
	return func(c *gin.Context) (string, bool) {
		if c.Request.Body == nil {
			return "", false
		}
		raw, err := c.GetRawData()
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return "", false
		}

		var payload struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return "", false
		}
		email := strings.TrimSpace(payload.Email)
		return email, email != ""
	}
}

// usage is the state of one bucket at the time of the request.
type usage struct {
	limit   Limit
	key     string
	used    int
	resetAt time.Time
}

func (u usage) exhausted() bool { return u.used >= u.limit.Max }

func (u usage) remaining() int { return max(u.limit.Max-u.used, 0) }

func (u usage) retryAfter(now time.Time) int {
	return max(int(math.Ceil(u.resetAt.Sub(now).Seconds())), 0)
}

// Enforce returns middleware rejecting a request once any of its buckets is exhausted. A request is
// counted against every bucket only when all of them still have room.
func (rl *RateLimiter) Enforce(limits ...Limit) gin.HandlerFunc {
	active := make([]Limit, 0, len(limits))
	for _, l := range limits {
		if l.Key == nil || l.Max <= 0 || l.Window <= 0 {
			continue
		}
		active = append(active, l)
	}

	return func(c *gin.Context) {
		if rl.store == nil || len(active) == 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		now := rl.now()

		buckets := make([]usage, 0, len(active))
		for _, l := range active {
			id, ok := l.Key(c)
			if !ok {
				continue
			}
			u, err := rl.inspect(ctx, l, l.Name+":"+id, now)
			if err != nil {
				// Fail open: a store outage must not lock every student out of login.
				rl.logger.Warn("rate limit check failed", zap.String("limit", l.Name), zap.Error(err))
				continue
			}
			buckets = append(buckets, u)
		}
		if len(buckets) == 0 {
			c.Next()
			return
		}

		if blocked, ok := longestBlock(buckets, now); ok {
			setRateLimitHeaders(c, blocked, now)
			rl.reject(c, blocked, now)
			return
		}

		for i := range buckets {
			if err := rl.store.RecordAttempt(ctx, buckets[i].key, now); err != nil {
				rl.logger.Warn("rate limit record failed", zap.String("limit", buckets[i].limit.Name), zap.Error(err))
				continue
			}
			buckets[i].used++
		}
		setRateLimitHeaders(c, tightest(buckets), now)

		c.Next()
	}
}

func (rl *RateLimiter) inspect(ctx context.Context, l Limit, key string, now time.Time) (usage, error) {
	if err := rl.store.TrimWindow(ctx, key, l.Window, now); err != nil {
		return usage{}, err
	}
	used, err := rl.store.CountAttempts(ctx, key, l.Window, now)
	if err != nil {
		return usage{}, err
	}
	oldest, ok, err := rl.store.OldestAttempt(ctx, key, l.Window, now)
	if err != nil {
		return usage{}, err
	}

	u := usage{limit: l, key: key, used: used, resetAt: now.Add(l.Window)}
	if ok {
		u.resetAt = oldest.Add(l.Window)
	}
	return u, nil
}

// longestBlock picks the exhausted bucket that frees up last.
func longestBlock(buckets []usage, now time.Time) (usage, bool) {
	var (
		blocked usage
		found   bool
	)
	for _, u := range buckets {
		if !u.exhausted() {
			continue
		}
		if !found || u.retryAfter(now) > blocked.retryAfter(now) {
			blocked, found = u, true
		}
	}
	return blocked, found
}

// tightest picks the bucket with the least room left, breaking ties on the earliest reset.
func tightest(buckets []usage) usage {
	best := buckets[0]
	for _, u := range buckets[1:] {
		if u.remaining() < best.remaining() || (u.remaining() == best.remaining() && u.resetAt.Before(best.resetAt)) {
			best = u
		}
	}
	return best
}

func setRateLimitHeaders(c *gin.Context, u usage, now time.Time) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(u.limit.Max))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(u.remaining()))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(u.resetAt.Unix(), 10))
	if u.exhausted() {
		h.Set("Retry-After", strconv.Itoa(u.retryAfter(now)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, u usage, now time.Time) {
	retry := u.retryAfter(now)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	rl.logger.Info("request rate limited",
		zap.String("limit", u.limit.Name),
		zap.String("route", instance),
		zap.Int("retry_after", retry),
	)

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
		Instance:   instance,
		RetryAfter: retry,
		Limit:      u.limit.Name,
		TraceID:    GetTraceID(c),
	})
}
