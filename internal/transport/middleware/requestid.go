package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

const TraceHeader = "X-Trace-ID"

// RequestID tags the request with a trace id and remembers the path the client asked
// for, which denial responses report back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "trace_id", traceID)
		ctx = internal.ContextWithRequestPath(ctx, r.URL.RequestURI())

		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
