package cache

import (
	"context"

	"github.com/picahq/pica-gateway/internal/config"
	"github.com/picahq/pica-gateway/internal/entities"
)

// CMDKey is the composite cache key for a ConnectionModelDefinition looked
// up by (platform, path, method) instead of by id — the shape a passthrough
// request arrives in before any CMD id is known.
type CMDKey struct {
	Platform string
	Path     string
	Method   string
}

// Stores is the minimal read surface Catalog needs from internal/store,
// expressed here to avoid Catalog depending on the concrete Mongo types.
type Stores interface {
	EventAccessByKey(ctx context.Context, accessKey string) (entities.EventAccess, error)
	ConnectionByKey(ctx context.Context, key string) (entities.Connection, error)
	ConnectionDefinitionByID(ctx context.Context, id entities.Id) (entities.ConnectionDefinition, error)
	ConnectionOAuthDefinitionByPlatform(ctx context.Context, platform string) (entities.ConnectionOAuthDefinition, error)
	ConnectionModelDefinitionByID(ctx context.Context, id entities.Id) (entities.ConnectionModelDefinition, error)
	ConnectionModelDefinitionByRoute(ctx context.Context, platform, path, method string) (entities.ConnectionModelDefinition, error)
}

// Catalog bundles every cache named in spec.md §4.1, one per (entity,
// key-type) pair, each independently sized/TTL'd from config.
type Catalog struct {
	EventAccess                *Cache[string, entities.EventAccess]
	Connection                 *Cache[string, entities.Connection]
	ConnectionDefinition        *Cache[entities.Id, entities.ConnectionDefinition]
	ConnectionOAuthDefinition   *Cache[string, entities.ConnectionOAuthDefinition]
	ConnectionModelDefinitionID *Cache[entities.Id, entities.ConnectionModelDefinition]
	ConnectionModelDefinitionRt *Cache[CMDKey, entities.ConnectionModelDefinition]
}

// NewCatalog wires every cache to store s, sized per cfg.
func NewCatalog(cfg *config.Config, s Stores) *Catalog {
	return &Catalog{
		EventAccess: New[string, entities.EventAccess](cfg.EventAccessCacheSize, cfg.EventAccessCacheTTL,
			func(ctx context.Context, key string) (entities.EventAccess, error) {
				return s.EventAccessByKey(ctx, key)
			}),
		Connection: New[string, entities.Connection](cfg.ConnectionCacheSize, cfg.ConnectionCacheTTL,
			func(ctx context.Context, key string) (entities.Connection, error) {
				return s.ConnectionByKey(ctx, key)
			}),
		ConnectionDefinition: New[entities.Id, entities.ConnectionDefinition](cfg.DefinitionCacheSize, cfg.DefinitionCacheTTL,
			func(ctx context.Context, id entities.Id) (entities.ConnectionDefinition, error) {
				return s.ConnectionDefinitionByID(ctx, id)
			}),
		ConnectionOAuthDefinition: New[string, entities.ConnectionOAuthDefinition](cfg.DefinitionCacheSize, cfg.DefinitionCacheTTL,
			func(ctx context.Context, platform string) (entities.ConnectionOAuthDefinition, error) {
				return s.ConnectionOAuthDefinitionByPlatform(ctx, platform)
			}),
		ConnectionModelDefinitionID: New[entities.Id, entities.ConnectionModelDefinition](cfg.CMDCacheSize, cfg.CMDCacheTTL,
			func(ctx context.Context, id entities.Id) (entities.ConnectionModelDefinition, error) {
				return s.ConnectionModelDefinitionByID(ctx, id)
			}),
		ConnectionModelDefinitionRt: New[CMDKey, entities.ConnectionModelDefinition](cfg.CMDCacheSize, cfg.CMDCacheTTL,
			func(ctx context.Context, key CMDKey) (entities.ConnectionModelDefinition, error) {
				return s.ConnectionModelDefinitionByRoute(ctx, key.Platform, key.Path, key.Method)
			}),
	}
}

// InvalidateConnection drops key from the Connection cache — called after
// an OAuth refresh or any other write that mutates a Connection in place.
func (c *Catalog) InvalidateConnection(key string) {
	c.Connection.Invalidate(key)
}
