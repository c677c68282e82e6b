package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/dispatch"
)

// Passthrough handles GET|POST|PATCH|PUT|DELETE /passthrough/*key, per
// spec.md §4.4: resolve the connection-model definition, decrypt the
// connection's secret, forward the request upstream verbatim, and relay
// the response with header translation.
func (s *Server) Passthrough(w http.ResponseWriter, r *http.Request) {
	conn, ok := auth.ConnectionFromContext(r.Context())
	if !ok {
		apperr.Write(w, r, apperr.New(apperr.KindBadRequest, "missing connection"))
		return
	}

	path := "/" + chi.URLParam(r, "*")
	actionID := r.Header.Get(s.Config.PassthroughActionIdHeader)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		apperr.Write(w, r, apperr.Wrap(apperr.KindIOErr, "failed to read request body", err))
		return
	}

	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	resp, err := s.Dispatcher.Passthrough(r.Context(), conn, r.Method, path, actionID, r.Header, query, body)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	translated := dispatch.TranslateResponseHeaders(resp.Headers)
	for k, vs := range translated {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
