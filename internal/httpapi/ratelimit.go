package httpapi

import (
	"net/http"
	"strconv"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/entities"
)

// RateLimitMiddleware enforces spec.md §4.3's per-EventAccess throughput
// budget: every request authenticated with an EventAccess increments that
// access's per-second Redis counter and is rejected once it exceeds
// EventAccess.Throughput. Must run after auth.Middleware, which attaches
// the EventAccess this reads.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ea := auth.EventAccessFromContext(r.Context())

		allowed, err := s.Limiter.Allow(r.Context(), string(ea.Id), ea.Throughput)
		if err != nil {
			apperr.Write(w, r, apperr.Wrap(apperr.KindServiceUnavailable, "rate limiter unavailable", err))
			return
		}
		if !allowed {
			if s.Metrics != nil {
				s.Metrics.Emit(entities.NewRateLimitedMetric(&ea, r.Header.Get(s.Config.ConnectionKeyHeader)))
			}
			w.Header().Set("Retry-After", "1")
			apperr.Write(w, r, apperr.New(apperr.KindRateLimited, "throughput limit exceeded for event access "+string(ea.Id)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func parseLimitParam(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
