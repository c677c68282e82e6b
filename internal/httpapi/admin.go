package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/store"
)

// mountCRUD registers the generic-CRUD verbs spec.md §6 describes for
// prefix against store s, scoping every operation to the caller's
// EventAccess.Ownership.Id and stamping idPrefix on create. Go methods
// can't carry their own type parameters, so this lives as a free function
// rather than on *Server.
func mountCRUD[T any](r chi.Router, srv *Server, prefix string, s *store.CRUDStore[T], idPrefix entities.IdPrefix) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { listCRUD(w, r, srv, s) })
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { createCRUD(w, r, s, idPrefix) })
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) { getCRUD(w, r, s) })
		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) { patchCRUD(w, r, s) })
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) { deleteCRUD(w, r, s) })
	})
}

func ownershipOf(r *http.Request) string {
	ea := auth.EventAccessFromContext(r.Context())
	return ea.Ownership.Id
}

func listCRUD[T any](w http.ResponseWriter, r *http.Request, srv *Server, s *store.CRUDStore[T]) {
	q := parseListQuery(r, srv.Config.ShowAllEnvironmentsHeader)
	items, err := s.List(r.Context(), ownershipOf(r), q)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func createCRUD[T any](w http.ResponseWriter, r *http.Request, s *store.CRUDStore[T], idPrefix entities.IdPrefix) {
	var doc bson.M
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		apperr.Write(w, r, apperr.Wrap(apperr.KindDeserializeError, "invalid request body", err))
		return
	}

	ea := auth.EventAccessFromContext(r.Context())
	id := entities.Now(idPrefix)
	doc["_id"] = string(id)
	doc["ownership"] = bson.M{"buildableId": ea.Ownership.Id, "clientId": ea.Ownership.ClientId}
	doc["recordMetadata"] = recordMetadataDoc()

	if _, err := s.Collection().InsertOne(r.Context(), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			apperr.Write(w, r, apperr.New(apperr.KindConflict, "id collision, retry"))
			return
		}
		apperr.Write(w, r, apperr.Wrap(apperr.KindIOErr, "failed to insert record", err))
		return
	}

	created, err := s.Get(r.Context(), id, ea.Ownership.Id)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func getCRUD[T any](w http.ResponseWriter, r *http.Request, s *store.CRUDStore[T]) {
	id := entities.Id(chi.URLParam(r, "id"))
	item, err := s.Get(r.Context(), id, ownershipOf(r))
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func patchCRUD[T any](w http.ResponseWriter, r *http.Request, s *store.CRUDStore[T]) {
	id := entities.Id(chi.URLParam(r, "id"))

	var fields bson.M
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		apperr.Write(w, r, apperr.Wrap(apperr.KindDeserializeError, "invalid request body", err))
		return
	}
	delete(fields, "_id")
	delete(fields, "ownership")
	delete(fields, "recordMetadata")

	updated, err := s.Update(r.Context(), id, ownershipOf(r), fields)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func deleteCRUD[T any](w http.ResponseWriter, r *http.Request, s *store.CRUDStore[T]) {
	id := entities.Id(chi.URLParam(r, "id"))
	if err := s.SoftDelete(r.Context(), id, ownershipOf(r)); err != nil {
		apperr.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recordMetadataDoc() bson.M {
	now := entities.NewRecordMetadata()
	return bson.M{
		"createdAt":  now.CreatedAt,
		"updatedAt":  now.UpdatedAt,
		"updated":    now.Updated,
		"active":     now.Active,
		"deprecated": now.Deprecated,
		"deleted":    now.Deleted,
		"version":    now.Version,
	}
}

// parseListQuery builds a store.ListQuery from spec.md §6's list grammar:
// limit, skip, arbitrary equality filters, contains, regex, and the
// show-all-environments override, read from whichever header name the
// deployment configured.
func parseListQuery(r *http.Request, showAllEnvironmentsHeader string) store.ListQuery {
	qp := r.URL.Query()

	q := store.ListQuery{
		Limit:               parseLimitParam(qp.Get("limit"), store.DefaultLimit, store.MaxLimit),
		Skip:                atoiOr(qp.Get("skip"), 0),
		Equals:              map[string]string{},
		Contains:            map[string][]string{},
		Regex:               map[string]string{},
		ShowAllEnvironments: strings.EqualFold(r.Header.Get(showAllEnvironmentsHeader), "true"),
	}

	reserved := map[string]bool{"limit": true, "skip": true, "contains": true, "regex": true}
	for field, vs := range qp {
		if reserved[field] || len(vs) == 0 {
			continue
		}
		q.Equals[field] = vs[0]
	}
	if raw := qp.Get("contains"); raw != "" {
		field, values := store.ParseContains(raw)
		if field != "" {
			q.Contains[field] = values
		}
	}
	if raw := qp.Get("regex"); raw != "" {
		field, pattern := store.ParseRegex(raw)
		if field != "" {
			q.Regex[field] = pattern
		}
	}

	return q
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
