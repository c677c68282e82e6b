package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/oauth"
)

// OAuthInit handles POST /oauth/:platform, spec.md §4.5's provisioning
// entrypoint: decode the request body, run the OAuth handler's full
// state machine, and return the newly minted (sanitized) Connection.
func (s *Server) OAuthInit(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	if platform == "" {
		apperr.Write(w, r, apperr.New(apperr.KindBadRequest, "missing platform"))
		return
	}

	var req oauth.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, r, apperr.Wrap(apperr.KindDeserializeError, "invalid oauth request body", err))
		return
	}

	ea := auth.EventAccessFromContext(r.Context())

	conn, err := s.OAuth.Provision(r.Context(), ea, platform, req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}
