package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/entities"
)

// Catalog is the hot-path reader set the cache layer's Loaders call into.
// It deliberately bypasses CRUDStore's ownership scoping where the lookup
// key already uniquely identifies the record (access key, connection key,
// definition id) — those lookups are keyed, not listed.
type Catalog struct {
	db *DB
}

// NewCatalog binds a Catalog to db.
func NewCatalog(db *DB) *Catalog { return &Catalog{db: db} }

func notFound(what string) error {
	return apperr.New(apperr.KindUnauthorized, what+" not found")
}

// EventAccessByKey loads the EventAccess whose AccessKey matches exactly.
func (c *Catalog) EventAccessByKey(ctx context.Context, accessKey string) (entities.EventAccess, error) {
	var out entities.EventAccess
	err := c.db.Database.Collection(CollEventAccess).
		FindOne(ctx, bson.M{"accessKey": accessKey, "recordMetadata.deleted": bson.M{"$ne": true}}).
		Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, notFound("event access")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load event access", err)
	}
	return out, nil
}

// ConnectionByKey loads the Connection with the given Key.
func (c *Catalog) ConnectionByKey(ctx context.Context, key string) (entities.Connection, error) {
	var out entities.Connection
	err := c.db.Database.Collection(CollConnections).
		FindOne(ctx, bson.M{"key": key, "recordMetadata.deleted": bson.M{"$ne": true}}).
		Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "connection not found")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load connection", err)
	}
	return out, nil
}

// ConnectionDefinitionByID loads a ConnectionDefinition by id.
func (c *Catalog) ConnectionDefinitionByID(ctx context.Context, id entities.Id) (entities.ConnectionDefinition, error) {
	var out entities.ConnectionDefinition
	err := c.db.Database.Collection(CollConnectionDefinitions).
		FindOne(ctx, bson.M{"_id": string(id)}).
		Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "connection definition not found")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load connection definition", err)
	}
	return out, nil
}

// ConnectionOAuthDefinitionByPlatform loads a ConnectionOAuthDefinition by
// its owning platform name.
func (c *Catalog) ConnectionOAuthDefinitionByPlatform(ctx context.Context, platform string) (entities.ConnectionOAuthDefinition, error) {
	var out entities.ConnectionOAuthDefinition
	err := c.db.Database.Collection(CollConnectionOAuthDefinitions).
		FindOne(ctx, bson.M{"connectionPlatform": platform}).
		Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "connection oauth definition not found")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load connection oauth definition", err)
	}
	return out, nil
}

// ConnectionModelDefinitionByID loads a ConnectionModelDefinition by id.
func (c *Catalog) ConnectionModelDefinitionByID(ctx context.Context, id entities.Id) (entities.ConnectionModelDefinition, error) {
	var out entities.ConnectionModelDefinition
	err := c.db.Database.Collection(CollConnectionModelDefinitions).
		FindOne(ctx, bson.M{"_id": string(id)}).
		Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "connection model definition not found")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load connection model definition", err)
	}
	return out, nil
}

// ConnectionModelDefinitionByRoute loads a ConnectionModelDefinition by the
// (platform, path, method) triple a passthrough request arrives with.
func (c *Catalog) ConnectionModelDefinitionByRoute(ctx context.Context, platform, path, method string) (entities.ConnectionModelDefinition, error) {
	var out entities.ConnectionModelDefinition
	err := c.db.Database.Collection(CollConnectionModelDefinitions).
		FindOne(ctx, bson.M{
			"connectionPlatform": platform,
			"path":               path,
			"action":             method,
		}).
		Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "connection model definition not found for route")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load connection model definition", err)
	}
	return out, nil
}

// UpdateConnectionOAuth stamps a Connection's OAuth tokens/expiry in place
// after a successful provisioning or refresh call, used by internal/oauth.
func (c *Catalog) UpdateConnectionOAuth(ctx context.Context, id entities.Id, expiresIn, expiresAt int64, secretsServiceID string) error {
	_, err := c.db.Database.Collection(CollConnections).UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{
			"oauth.expiresIn":  expiresIn,
			"oauth.expiresAt":  expiresAt,
			"secretsServiceId": secretsServiceID,
			"hasError":         false,
			"error":            nil,
		}},
	)
	if err != nil {
		return apperr.Wrap(apperr.KindIOErr, "failed to update connection oauth state", err)
	}
	return nil
}
