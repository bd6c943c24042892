// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/taskmanager/internal/config"
	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/metrics"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

// RateLimitConfig configures a limiter. When RoleLimits has an entry for
// the request's actor it overrides Limit.
type RateLimitConfig struct {
	Limit      redis_rate.Limit
	RoleLimits map[policy.Role]redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	OnLimited  func(http.ResponseWriter, *http.Request, *redis_rate.Result)
}

type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		config:   cfg,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

func (rl *RateLimiter) limitFor(r *http.Request) (redis_rate.Limit, string) {
	actor := GetActor(r.Context())
	if actor == nil {
		return rl.config.Limit, "anonymous"
	}
	if l, ok := rl.config.RoleLimits[actor.Role]; ok {
		return l, string(actor.Role)
	}
	return rl.config.Limit, string(actor.Role)
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		limit, role := rl.limitFor(r)
		res, err := rl.allow(r.Context(), key, limit)
		if err != nil {
			if rl.config.FailOpen {
				slog.Warn("rate limiter error, failing open",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.ErrServiceUnavailable)
			return
		}

		setRateLimitHeaders(w, res, limit)

		if res.Allowed == 0 {
			metrics.RateLimited.WithLabelValues(role).Inc()
			if rl.config.OnLimited != nil {
				rl.config.OnLimited(w, r, res)
				return
			}
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow asks Redis first and falls back to an in-process limiter when
// Redis is unreachable, so a Redis outage degrades to per-instance limits.
func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	if rl.limiter == nil {
		return rl.fallback.allow(key, limit)
	}

	res, err := rl.limiter.Allow(ctx, key, limit)
	if err != nil {
		slog.Warn("redis rate limiter unavailable, using local limiter", "error", err)
		return rl.fallback.allow(key, limit)
	}
	return res, nil
}

// KeyByIP keys by the client address, trusting the last X-Forwarded-For
// hop since that is the one our proxy appended.
func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// KeyByActor keys authenticated requests by user id and everything else
// by client address.
func KeyByActor(r *http.Request) string {
	if actor := GetActor(r.Context()); actor != nil {
		return "ratelimit:user:" + actor.ID
	}
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	reset := time.Now().Add(res.ResetAfter)

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, int(res.ResetAfter.Seconds())))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	core.JSONError(w, core.NewAppError(
		CodeRateLimited,
		fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter),
		http.StatusTooManyRequests,
		nil,
	))
}

const CodeRateLimited = "RATE_LIMITED"

const localEntryTTL = 10 * time.Minute

// localLimiter is the per-process stand-in used while Redis is down. Idle
// buckets are dropped lazily on the next call after localEntryTTL.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter *rate.Limiter
	limit   redis_rate.Limit
	seen    time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if limit.Period <= 0 || limit.Rate <= 0 {
		return nil, fmt.Errorf("invalid rate limit %s", limit)
	}
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &localBucket{
			limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst),
			limit:   limit,
		}
		l.buckets[key] = b
	}
	b.seen = now

	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(b.limiter.TokensAt(now)), 0)

	return res, nil
}

func (l *localLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < localEntryTTL {
		return
	}
	l.lastSweep = now

	for key, b := range l.buckets {
		if now.Sub(b.seen) > localEntryTTL {
			delete(l.buckets, key)
		}
	}
}

// RoleLimits scales a base limit by role rank: managers get twice the
// member allowance and admins four times.
func RoleLimits(base redis_rate.Limit) map[policy.Role]redis_rate.Limit {
	scale := func(n int) redis_rate.Limit {
		return redis_rate.Limit{Rate: base.Rate * n, Burst: base.Burst * n, Period: base.Period}
	}
	return map[policy.Role]redis_rate.Limit{
		policy.RoleMember:  base,
		policy.RoleManager: scale(2),
		policy.RoleAdmin:   scale(4),
	}
}

func LimitFromConfig(cfg config.RateLimitConfig) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   cfg.Requests,
		Burst:  cfg.Burst,
		Period: cfg.Window,
	}
}
