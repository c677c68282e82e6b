package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/apperr"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	ServerTime string `json:"serverTime"`
}

// Healthz answers GET /healthz unauthenticated, for load balancer and
// k8s liveness probes.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// NotFound renders apperr's standard error shape for unmatched routes,
// instead of chi's bare 404 text body.
func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	apperr.Write(w, r, apperr.New(apperr.KindNotFound, "route not found"))
}
