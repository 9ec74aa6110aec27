package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
)

func newTestLogger(level string) (*logger.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.New(logger.Config{Level: level, Format: "json", Output: buf}), buf
}

func decodeEnvelope(t *testing.T, body []byte) (code, message string, details map[string]any) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("body is not an error envelope: %v: %s", err, body)
	}
	return env.Error.Code, env.Error.Message, env.Error.Details
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(logger.RequestIDKey).(string)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("mints an ID when the client sends none", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/workers", nil))

		id := rec.Header().Get(RequestIDHeader)
		if len(id) != 32 {
			t.Errorf("expected a 32-char hex ID, got %q", id)
		}
		if seen != id {
			t.Errorf("context carries %q, header carries %q", seen, id)
		}
	})

	t.Run("keeps the inbound ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/workers", nil)
		req.Header.Set(RequestIDHeader, "retry-7f3a")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "retry-7f3a" {
			t.Errorf("expected retry-7f3a echoed back, got %q", got)
		}
		if seen != "retry-7f3a" {
			t.Errorf("context carries %q", seen)
		}
	})
}

func TestNewRequestIDUnique(t *testing.T) {
	if newRequestID() == newRequestID() {
		t.Error("expected distinct IDs")
	}
}

func TestLoggingAccessLine(t *testing.T) {
	log, buf := newTestLogger("info")

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/workers/cam-1", nil))

	line := buf.String()
	for _, want := range []string{"request completed", `"method":"GET"`, "/workers/cam-1", `"status":200`, `"size":5`, "duration_ms"} {
		if !strings.Contains(line, want) {
			t.Errorf("access line missing %s: %s", want, line)
		}
	}
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"2xx at info", 200, `"level":"INFO"`},
		{"3xx at info", 302, `"level":"INFO"`},
		{"4xx at warn", 404, `"level":"WARN"`},
		{"5xx at error", 500, `"level":"ERROR"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newTestLogger("info")
			handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

			if !strings.Contains(buf.String(), tt.level) {
				t.Errorf("expected %s, got: %s", tt.level, buf.String())
			}
		})
	}
}

func TestLoggingSilentHandler(t *testing.T) {
	log, buf := newTestLogger("info")

	// A handler that writes nothing still logs a 200.
	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	if !strings.Contains(buf.String(), `"status":200`) {
		t.Errorf("expected implicit 200, got: %s", buf.String())
	}
}

func TestStatusWriter(t *testing.T) {
	t.Run("first status wins", func(t *testing.T) {
		sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
		sw.WriteHeader(http.StatusCreated)
		sw.WriteHeader(http.StatusTeapot)
		if sw.status != http.StatusCreated {
			t.Errorf("status = %d", sw.status)
		}
	})

	t.Run("write implies 200 and counts bytes", func(t *testing.T) {
		sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
		sw.Write([]byte("hello world"))
		if sw.status != http.StatusOK {
			t.Errorf("status = %d", sw.status)
		}
		if sw.bytes != 11 {
			t.Errorf("bytes = %d", sw.bytes)
		}
	})
}

func TestRecovery(t *testing.T) {
	log, buf := newTestLogger("info")

	handler := Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("registry corrupted")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/workers", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	code, _, _ := decodeEnvelope(t, rec.Body.Bytes())
	if code != string(errors.CodeInternal) {
		t.Errorf("envelope code = %q", code)
	}

	logged := buf.String()
	if !strings.Contains(logged, "panic recovered") || !strings.Contains(logged, "registry corrupted") {
		t.Errorf("panic not logged: %s", logged)
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	if !ok {
		t.Fatal("handler context has no deadline")
	}
	if until := time.Until(deadline); until > time.Second {
		t.Errorf("deadline too far out: %v", until)
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantLog    string
	}{
		{
			name:       "not found logs at warn",
			err:        errors.NotFound("worker", "cam-9"),
			wantStatus: 404,
			wantCode:   "NOT_FOUND",
			wantLog:    "request error",
		},
		{
			name:       "duplicate start maps to conflict",
			err:        errors.AlreadyExists("worker", "cam-1"),
			wantStatus: 409,
			wantCode:   "ALREADY_EXISTS",
			wantLog:    "request error",
		},
		{
			name:       "wrapped cause stays internal",
			err:        errors.Wrap(context.Canceled, "catalog.get", "loading camera"),
			wantStatus: 500,
			wantCode:   "INTERNAL_ERROR",
			wantLog:    "request failed",
		},
		{
			name:       "expired deadline becomes timeout",
			err:        errors.Wrap(context.DeadlineExceeded, "catalog.get", "loading camera"),
			wantStatus: 504,
			wantCode:   "TIMEOUT",
			wantLog:    "request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newTestLogger("info")
			rec := httptest.NewRecorder()

			HandleError(rec, httptest.NewRequest("GET", "/workers/cam-9", nil), log, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			code, _, _ := decodeEnvelope(t, rec.Body.Bytes())
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("expected %q in log: %s", tt.wantLog, buf.String())
			}
		})
	}
}

func TestHandleErrorDetails(t *testing.T) {
	log, _ := newTestLogger("error")
	rec := httptest.NewRecorder()

	HandleError(rec, httptest.NewRequest("GET", "/workers/cam-9", nil), log, errors.NotFound("worker", "cam-9"))

	_, _, details := decodeEnvelope(t, rec.Body.Bytes())
	if details["resource"] != "worker" || details["id"] != "cam-9" {
		t.Errorf("details = %v", details)
	}
}

func TestHandleErrorLogsStackFor500(t *testing.T) {
	log, buf := newTestLogger("info")
	rec := httptest.NewRecorder()

	HandleError(rec, httptest.NewRequest("GET", "/x", nil), log, errors.Wrap(context.Canceled, "op", "boom"))

	if !strings.Contains(buf.String(), `"stack"`) {
		t.Errorf("expected stack in server error log: %s", buf.String())
	}
}
