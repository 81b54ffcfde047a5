package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Paths and user agents of common scanners. Nothing legitimate on this
// site matches them.
var (
	blockedPaths = []string{
		".php",
		".env",
		".git",
		"wp-admin",
		"wp-login",
		"xmlrpc",
	}
	blockedAgents = []string{
		"sqlmap",
		"nikto",
		"masscan",
	}
)

func blocked(r *http.Request) bool {
	uri := strings.ToLower(r.URL.Path)
	for _, p := range blockedPaths {
		if strings.Contains(uri, p) {
			return true
		}
	}

	agent := strings.ToLower(r.UserAgent())
	for _, a := range blockedAgents {
		if strings.Contains(agent, a) {
			return true
		}
	}
	return false
}

// loggingMiddleware logs every request and rejects scanner traffic
// before it reaches the mux.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if blocked(r) {
			h.logger.Warn("blocked request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)
			http.Error(w, "Access Denied", http.StatusForbidden)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("bytes", wrapped.contentLength),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	contentLength int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.contentLength += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
