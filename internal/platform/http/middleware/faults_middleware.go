package middleware

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
)

// FaultsMiddleware delays every request by cfg.Latency and fails a
// cfg.FailRate fraction of them with cfg.FailCode. Failures are written by
// reject; nil writes a plain-text status. rnd returns a value in [0, 1); nil
// uses math/rand.
func FaultsMiddleware(cfg config.FaultsConfig, reject RejectFunc, rnd func() float64) func(http.Handler) http.Handler {
	if rnd == nil {
		rnd = rand.Float64
	}
	if reject == nil {
		reject = plainReject
	}
	code := cfg.FailCode
	if code == 0 {
		code = http.StatusServiceUnavailable
	}
	latency := cfg.Latency()

	return func(next http.Handler) http.Handler {
		if latency <= 0 && cfg.FailRate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if latency > 0 {
				t := time.NewTimer(latency)
				select {
				case <-t.C:
				case <-r.Context().Done():
					t.Stop()
					return
				}
			}
			if cfg.FailRate > 0 && rnd() < cfg.FailRate {
				appctx.GetLogger(r.Context()).Debug("failure injected", "status", code)
				reject(w, r, code)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
