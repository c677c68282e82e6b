package httpapi

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/httpapi/correlation"
)

// CorrelationMiddleware reads X-Correlation-ID, generating one if the
// caller didn't supply it, echoes it back on the response, and stores it
// in context via internal/httpapi/correlation so internal/apperr can log
// and report it from any handler without importing this package.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = correlation.New()
		}
		w.Header().Set("X-Correlation-ID", id)

		ctx := correlation.WithContext(r.Context(), id)
		logger := log.With().Str("correlation_id", id).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
