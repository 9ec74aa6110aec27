// Package middleware carries the cross-cutting concerns of the ops API:
// request correlation, access logging, panic containment, deadlines, and
// the mapping from coded errors to wire responses.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"runtime/debug"
	"time"

	"argus/internal/httpkit"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
)

// RequestIDHeader carries the correlation ID in and out of the API.
const RequestIDHeader = "X-Request-ID"

// RequestID trusts an inbound X-Request-ID when present and mints one
// otherwise, so retried client calls stay correlated in the logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := logger.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// statusWriter records what the handler wrote so the access log can
// report status and body size. A zero status means the handler never
// called WriteHeader.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status != 0 {
		return
	}
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	if sw.status == 0 {
		sw.WriteHeader(http.StatusOK)
	}
	n, err := sw.ResponseWriter.Write(p)
	sw.bytes += n
	return n, err
}

// Logging emits one access line per request. Client errors log at warn,
// server errors at error, so filtered production logs still show them.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			reqLog := log.FromContext(r.Context())
			reqLog.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			line := reqLog.Info
			switch {
			case status >= 500:
				line = reqLog.Error
			case status >= 400:
				line = reqLog.Warn
			}
			line("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"size", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// Recovery turns handler panics into logged 500s instead of torn
// connections. The daemon keeps serving either way.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				log.FromContext(r.Context()).Error("panic recovered",
					"panic", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				httpkit.WriteError(w, http.StatusInternalServerError,
					string(errors.CodeInternal), "internal server error", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout caps how long a request may hold a handler. Handlers observe
// the deadline through the request context, and HandleError reports the
// expiry as a timeout instead of a generic 500.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HandleError logs err and writes the matching error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = errors.Timeout(r.Method + " " + r.URL.Path)
	}

	code := errors.GetCode(err)
	status := errors.GetHTTPStatus(err)
	fields := errors.GetFields(err)

	line := []any{
		"error", err.Error(),
		"code", string(code),
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
	}
	for k, v := range fields {
		line = append(line, k, v)
	}

	reqLog := log.FromContext(r.Context())
	if status >= 500 {
		var coded *errors.Error
		if errors.As(err, &coded) && len(coded.Stack) > 0 {
			line = append(line, "stack", coded.StackTrace())
		}
		reqLog.Error("request failed", line...)
	} else {
		reqLog.Warn("request error", line...)
	}

	httpkit.WriteError(w, status, string(code), err.Error(), fields)
}
