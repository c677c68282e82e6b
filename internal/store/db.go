// Package store is the gateway's MongoDB persistence layer: a thin
// connection-open helper (grounded on internal/db/pg.go's Open) plus a
// generic CRUDStore[T] and the typed, hot-path-shaped readers the cache
// layer calls into.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rs/zerolog/log"
)

// DB bundles the live client and the database handle every store needs.
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Open connects to MongoDB at url and verifies connectivity with a ping,
// the same "connect then verify before returning" shape as db.Open.
func Open(ctx context.Context, url, dbName string) (*DB, error) {
	opts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Minute)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info().
		Uint64("max_pool_size", *opts.MaxPoolSize).
		Uint64("min_pool_size", *opts.MinPoolSize).
		Str("database", dbName).
		Msg("mongodb connection established")

	return &DB{Client: client, Database: client.Database(dbName)}, nil
}

// Close disconnects the underlying client.
func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

// Collection names, one constant per collection named in spec.md §3/§6.
const (
	CollEventAccess                = "eventAccess"
	CollConnections                = "connections"
	CollConnectionDefinitions      = "connection-definitions"
	CollConnectionModelDefinitions = "connection-model-definitions"
	CollConnectionModelSchemas     = "connection-model-schemas"
	CollConnectionOAuthDefinitions = "connection-oauth-definitions"
	CollPublicConnectionDetails    = "public-connection-details"
	CollCommonModels               = "common-models"
	CollCommonEnums                = "common-enums"
	CollPlatforms                  = "platforms"
	CollPlatformPages              = "platform-pages"
	CollSecrets                    = "secrets"
	CollEvents                     = "events"
	CollMetrics                    = "metrics"
	CollTasks                      = "tasks"
	CollClients                    = "clients"
	CollSettings                   = "settings"
	CollKnowledge                  = "knowledge"
)
