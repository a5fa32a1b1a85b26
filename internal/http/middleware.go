package http

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger attaches a request scoped logger to the context and logs the
// outcome of every request. An incoming X-Request-ID is reused.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(ctx, "request completed", "status", status, "bytes", ww.BytesWritten(), "duration", time.Since(start))
		})
	}
}

const maxTrackedClients = 4096

// RateLimit answers 429 once a client IP exceeds perSecond with the given
// burst. Limiters of the least recently seen clients are evicted past
// maxTrackedClients. Health checks are never throttled.
func RateLimit(perSecond float64, burst int, base *slog.Logger) func(http.Handler) http.Handler {
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	var mu sync.Mutex
	limiterFor := func(client string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if limiter, ok := limiters.Get(client); ok {
			return limiter
		}
		limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
		limiters.Add(client, limiter)
		return limiter
	}

	responder := newResponder(base)
	retryAfter := "1"
	if perSecond > 0 && perSecond < 1 {
		retryAfter = strconv.Itoa(int(1/perSecond + 0.5))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || limiterFor(clientIP(r)).Allow() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter)
			responder.loggerFor(r.Context()).WarnContext(r.Context(), "request throttled", "client", clientIP(r))
			responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{
				ErrorCode: "RATE_LIMITED",
				Message:   "too many requests; retry shortly",
			})
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
