package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/entities"
)

// DatabaseConnectionLost handles the unsecured POST
// /v1/public/event-callbacks/database-connection-lost/:connectionId: mark
// the connection deprecated and inactive. Idempotent, per spec.md §8 — a
// second call against an already-deprecated connection still returns 200
// with the same end state.
func (s *Server) DatabaseConnectionLost(w http.ResponseWriter, r *http.Request) {
	id := entities.Id(chi.URLParam(r, "connectionId"))

	var conn entities.Connection
	err := s.ConnectionStore.Collection().FindOneAndUpdate(r.Context(),
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{
			"recordMetadata.deprecated": true,
			"recordMetadata.active":    false,
		}},
	).Decode(&conn)
	if err != nil && err != mongo.ErrNoDocuments {
		apperr.Write(w, r, apperr.Wrap(apperr.KindIOErr, "failed to mark connection lost", err))
		return
	}
	s.Catalog.InvalidateConnection(conn.Key)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EventCallback handles the unsecured POST /v1/event-callbacks/*: the
// catch-all inbound webhook surface for out-of-scope upstream event
// sources. The gateway has nothing registered against it yet beyond
// acknowledging receipt, so every call is logged and answered 200.
func (s *Server) EventCallback(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("path", r.URL.Path).Msg("received unhandled event callback")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
