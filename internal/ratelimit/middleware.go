package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Limiter Limiter
	KeyFn   KeyFunc
	// TrustProxy makes the default KeyFn use the first X-Forwarded-For hop.
	TrustProxy bool
	Logger     *zap.Logger
	// OnLimited writes the response for a rejected request. The
	// Retry-After header is already set when it runs.
	OnLimited func(w http.ResponseWriter, r *http.Request, d Decision)
}

// ClientIP returns the key used to throttle r: the first X-Forwarded-For
// entry when trustProxy is set, otherwise the host part of RemoteAddr.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		trust := opts.TrustProxy
		opts.KeyFn = func(r *http.Request) string { return ClientIP(r, trust) }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OnLimited == nil {
		opts.OnLimited = func(w http.ResponseWriter, _ *http.Request, _ Decision) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec, err := opts.Limiter.Allow(r.Context(), key)
			if err != nil {
				// Fail open: a broken counter store must not block signups.
				opts.Logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !dec.Allowed {
				opts.Logger.Info("rate limited",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Duration("retry_after", dec.RetryAfter),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(dec)))
				opts.OnLimited(w, r, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d Decision) int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
