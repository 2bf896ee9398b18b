package observability

import (
	"net/http"
	"time"

	"github.com/oriys/asynccalc/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// HTTPMiddleware traces and logs requests to the daemon's HTTP endpoints
// (/metrics, /stats, /healthz).
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if !Enabled() {
			next.ServeHTTP(rec, r)
			logRequest(r, rec.status, time.Since(start))
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := StartServerSpan(ctx, r.Method+" "+r.URL.Path,
			AttrHTTPMethod.String(r.Method),
			AttrHTTPPath.String(r.URL.Path),
		)
		defer span.End()

		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(AttrHTTPStatus.Int(rec.status))
		if rec.status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		logRequest(r, rec.status, time.Since(start))
	})
}

func logRequest(r *http.Request, status int, d time.Duration) {
	logging.Op().Debug("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", d,
	)
}

// statusRecorder remembers the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
