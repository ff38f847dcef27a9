package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRequestLogger logs one line per request and stores a request-scoped
// logger (tagged with the request id) in the request context.
func NewRequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(reqLog.WithContext(r.Context()))

			defer func() {
				ev := reqLog.Info()
				switch {
				case ww.Status() >= 500:
					ev = reqLog.Error()
				case r.URL.Path == "/health" || r.URL.Path == "/healthz":
					ev = reqLog.Debug()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("http request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
