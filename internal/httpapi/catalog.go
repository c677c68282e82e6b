package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/store"
)

// ConnectionModelDefinitionTest answers GET
// /connection-model-definitions/test/:id: load the definition by id and
// echo it back, so catalog editors can confirm an id resolves before
// wiring it into a platform's action list.
func (s *Server) ConnectionModelDefinitionTest(w http.ResponseWriter, r *http.Request) {
	id := entities.Id(chi.URLParam(r, "id"))
	def, err := s.ConnectionModelDefStore.Get(r.Context(), id, "")
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// ConnectionModelSchema answers GET /connection-model-schema, looked up by
// the connectionModelDefinitionId query parameter.
func (s *Server) ConnectionModelSchema(w http.ResponseWriter, r *http.Request) {
	cmdID := r.URL.Query().Get("connectionModelDefinitionId")
	if cmdID == "" {
		apperr.Write(w, r, apperr.New(apperr.KindBadRequest, "missing connectionModelDefinitionId"))
		return
	}

	var schema entities.ConnectionModelSchema
	err := s.SchemaStore.Collection().FindOne(r.Context(), bson.M{
		"connectionModelDefinitionId": cmdID,
		"recordMetadata.deleted":      bson.M{"$ne": true},
	}).Decode(&schema)
	if err != nil {
		apperr.Write(w, r, apperr.New(apperr.KindNotFound, "no schema for that connection model definition"))
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// AvailableConnectors answers GET /available-connectors: every
// ConnectionDefinition in the catalog, the platform picker's data source.
func (s *Server) AvailableConnectors(w http.ResponseWriter, r *http.Request) {
	defs, err := s.ConnectionDefStore.List(r.Context(), "", store.ListQuery{Limit: store.MaxLimit})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

// AvailableActions answers GET /available-actions/:platform: every
// ConnectionModelDefinition registered for that platform.
func (s *Server) AvailableActions(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	cur, err := s.ConnectionModelDefStore.Collection().Find(r.Context(), bson.M{"connectionPlatform": platform})
	if err != nil {
		apperr.Write(w, r, apperr.Wrap(apperr.KindIOErr, "failed to list actions", err))
		return
	}
	defer cur.Close(r.Context())

	var defs []entities.ConnectionModelDefinition
	if err := cur.All(r.Context(), &defs); err != nil {
		apperr.Write(w, r, apperr.Wrap(apperr.KindIOErr, "failed to decode actions", err))
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

// PublicConnectionDefinitions answers the unsecured GET
// /v1/public/connection-definitions: the same connector list
// AvailableConnectors serves, reachable without an access key so the
// unauthenticated onboarding UI can render a platform picker.
func (s *Server) PublicConnectionDefinitions(w http.ResponseWriter, r *http.Request) {
	s.AvailableConnectors(w, r)
}
