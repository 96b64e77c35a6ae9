package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const annotationsKey contextKey = "access_log_annotations"

// accessLogEntry is one JSON line per request. Question text is never logged;
// handlers attach only counts and modes through Annotate.
type accessLogEntry struct {
	Timestamp  string         `json:"ts"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	Route      string         `json:"route,omitempty"`
	Status     int            `json:"status"`
	Bytes      int            `json:"bytes"`
	DurationMS int64          `json:"duration_ms"`
	RequestID  string         `json:"request_id,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

type annotations struct {
	mu     sync.Mutex
	fields map[string]any
}

// Annotate adds a field to the access log line of the current request. It is a
// no-op outside AccessLog.
func Annotate(ctx context.Context, key string, value any) {
	a, ok := ctx.Value(annotationsKey).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fields == nil {
		a.fields = make(map[string]any)
	}
	a.fields[key] = value
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// AccessLog emits structured JSON logs for HTTP requests.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		notes := &annotations{}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), annotationsKey, notes)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		entry := accessLogEntry{
			Timestamp:  start.UTC().Format(time.RFC3339Nano),
			Method:     r.Method,
			Path:       r.URL.Path,
			Route:      routePattern(r),
			Status:     status,
			Bytes:      rec.bytes,
			DurationMS: time.Since(start).Milliseconds(),
			RequestID:  GetRequestID(r.Context()),
			RemoteAddr: clientIP(r),
			Fields:     notes.fields,
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			log.Printf("access_log_marshal_error: %v", err)
			return
		}
		log.Println(string(payload))
	})
}

// routePattern reads the matched chi pattern, e.g. /chunks/{id}. chi fills the
// route context in place, so it is visible after the handler returns.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
