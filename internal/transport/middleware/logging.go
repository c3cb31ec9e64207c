package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/office-erp/pkg/logger"
)

const (
	redacted        = "[FILTERED]"
	maxLoggedBody   = 4 << 10
	truncatedMarker = "...[TRUNCATED]"
)

// sensitiveFields match header names and JSON keys by substring. Salary amounts are
// redacted too: they are readable only through the salary_records grants.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"cookie",
	"secret",
	"api_key",
	"credential",
	"basic_idr",
	"allowances_idr",
	"deductions_idr",
	"net_idr",
}

// quietPaths are probed constantly and log at debug.
var quietPaths = map[string]bool{
	"/api/v1/health": true,
	"/api/v1/ping":   true,
}

// LoggingMiddleware logs each request and its outcome. Response bodies are only kept for
// failures; a 403 additionally logs the denial reason so refused checks can be traced
// without reading the body.
func LoggingMiddleware(base *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lg := requestLogger(base, r)

			level := slog.LevelInfo
			if quietPaths[r.URL.Path] {
				level = slog.LevelDebug
			}
			logRequest(lg, level, r)

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			logResponse(lg, level, r, rec, time.Since(start))
		})
	}
}

func requestLogger(base *slog.Logger, r *http.Request) *slog.Logger {
	lg := logger.From(r.Context())
	if lg == logger.LoggerWrapper() && base != nil {
		lg = base
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		lg = lg.With("request_id", reqID)
	}
	return lg
}

// responseRecorder keeps the status and, for error statuses, the start of the body.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	if rw.status >= http.StatusBadRequest && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b[:min(len(b), maxLoggedBody-rw.body.Len())])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseRecorder) statusCode() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func logRequest(lg *slog.Logger, level slog.Level, r *http.Request) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", redactHeaders(r.Header),
	}

	if r.Body != nil && r.Body != http.NoBody {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
		if err == nil {
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
			attrs = append(attrs, "body", redactBody(raw))
		}
	}

	lg.Log(r.Context(), level, "incoming request", attrs...)
}

func logResponse(lg *slog.Logger, level slog.Level, r *http.Request, rw *responseRecorder, d time.Duration) {
	status := rw.statusCode()
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	attrs := []any{
		"status_code", status,
		"duration_ms", d.Milliseconds(),
		"response_size", rw.size,
	}
	if status == http.StatusForbidden {
		var denial struct {
			Reason        string `json:"reason"`
			Resource      string `json:"resource"`
			Action        string `json:"action"`
			AttemptedPath string `json:"attempted_path"`
		}
		if json.Unmarshal(rw.body.Bytes(), &denial) == nil && denial.Reason != "" {
			attrs = append(attrs,
				"denial_reason", denial.Reason,
				"denied_resource", denial.Resource,
				"denied_action", denial.Action,
				"attempted_path", denial.AttemptedPath)
		}
	}
	if status >= http.StatusBadRequest && rw.body.Len() > 0 {
		attrs = append(attrs, "body", redactBody(rw.body.Bytes()))
	}

	lg.Log(r.Context(), level, "response", attrs...)
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(name, field) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	truncated := len(body) > maxLoggedBody
	if truncated {
		body = body[:maxLoggedBody]
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		if truncated {
			return string(body) + truncatedMarker
		}
		return string(body)
	}

	out, err := json.Marshal(redactJSON(doc))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func redactJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = redacted
				continue
			}
			out[key] = redactJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redactJSON(item)
		}
		return out
	default:
		return v
	}
}
