package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/dispatch"
)

// Unified handles GET|POST|PATCH|PUT|DELETE /unified/*key, dispatching
// through the extractor interface per spec.md §6: honors
// X-PICA-ENABLE-PASSTHROUGH to bypass the unified transform entirely.
func (s *Server) Unified(w http.ResponseWriter, r *http.Request) {
	conn, ok := auth.ConnectionFromContext(r.Context())
	if !ok {
		apperr.Write(w, r, apperr.New(apperr.KindBadRequest, "missing connection"))
		return
	}

	path := "/" + chi.URLParam(r, "*")
	actionID := r.Header.Get(s.Config.PassthroughActionIdHeader)
	enablePassthrough, _ := strconv.ParseBool(r.Header.Get("X-PICA-ENABLE-PASSTHROUGH"))

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

	resp, err := s.Dispatcher.Unified(r.Context(), conn, r.Method, path, actionID, enablePassthrough, r.Header, query, body)
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
