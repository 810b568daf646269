package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"alphagate/lib/api/remote"
	"alphagate/lib/api/response"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

const cleanupInterval = 5 * time.Minute

type Config struct {
	Requests int
	Window   time.Duration
	Burst    int
}

var (
	// Strict guards credential checks: login and admin login.
	Strict = Config{Requests: 5, Window: time.Minute, Burst: 5}
	// Moderate guards captcha issue and access requests.
	Moderate = Config{Requests: 20, Window: time.Minute, Burst: 20}
)

type KeyFunc func(r *http.Request) string

type limiter struct {
	limiters    sync.Map
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (l *limiter) get(key string) *rate.Limiter {
	if lim, ok := l.limiters.Load(key); ok {
		return lim.(*rate.Limiter)
	}
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	l.cleanup()
	return actual.(*rate.Limiter)
}

// cleanup drops limiters whose bucket refilled completely.
func (l *limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = time.Now()
	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// ByIP limits requests per client address.
func ByIP(log *slog.Logger, conf Config) func(next http.Handler) http.Handler {
	return New(log, conf, remote.IP)
}

func New(log *slog.Logger, conf Config, key KeyFunc) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.ratelimit")
	l := &limiter{
		rate:        rate.Limit(float64(conf.Requests) / conf.Window.Seconds()),
		burst:       conf.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			lim := l.get(k)
			if lim.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			reservation := lim.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()
			retryAfter := max(int(delay.Seconds()), 1)

			log.With(mod).Warn("rate limit exceeded",
				slog.String("key", k),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after", retryAfter),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(conf.Requests))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("Too many requests, try again later"))
		}
		return http.HandlerFunc(fn)
	}
}
