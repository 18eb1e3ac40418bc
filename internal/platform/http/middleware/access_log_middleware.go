package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/appctx"
)

// AccessLogMiddleware logs one line per request once the handler returns.
// It uses the request-scoped logger from context (set by RequestLoggerMiddleware),
// which already carries request_id, method, path and client_ip.
func AccessLogMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := appctx.LoggerFromContext(r.Context())
				if !ok {
					logger = log.With(
						"request_id", chimw.GetReqID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"client_ip", clientIP(r),
					)
				}

				// A handler that never writes gets Go's implicit 200.
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				// Only response fields here; base fields are already attached.
				logger.Info("request",
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
