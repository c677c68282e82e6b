package entities

import "time"

// MetricKind is the Metric variant discriminator, grounded on
// original_source/api/src/domain/metrics.rs's MetricType enum (Passthrough
// | Unified | RateLimited), serialized in camelCase to match the document
// keys the original writes ("passthrough.total", "rateLimited.total", ...).
type MetricKind string

const (
	MetricPassthrough MetricKind = "passthrough"
	MetricUnified     MetricKind = "unified"
	MetricRateLimited MetricKind = "rateLimited"
)

// EventName mirrors MetricType::event_name() from the original — the
// human-readable name handed to the analytics tracker.
func (k MetricKind) EventName() string {
	switch k {
	case MetricPassthrough:
		return "Called Passthrough API"
	case MetricUnified:
		return "Called Unified API"
	case MetricRateLimited:
		return "Reached Rate Limit"
	default:
		return string(k)
	}
}

// Metric is the closed sum described in spec.md §3: exactly one of
// Connection (Passthrough/Unified) or EventAccess (RateLimited) is set,
// selected by Kind.
type Metric struct {
	Kind           MetricKind
	Connection     *Connection  // set for Passthrough/Unified
	Action         *Action      // set for Unified
	EventAccess    *EventAccess // set for RateLimited
	RateLimitedKey string       // optional connection-key header, RateLimited only
	Date           time.Time
}

// NewPassthroughMetric builds the Passthrough variant of Metric.
func NewPassthroughMetric(conn *Connection) Metric {
	return Metric{Kind: MetricPassthrough, Connection: conn, Date: time.Now().UTC()}
}

// NewUnifiedMetric builds the Unified variant of Metric.
func NewUnifiedMetric(conn *Connection, action Action) Metric {
	return Metric{Kind: MetricUnified, Connection: conn, Action: &action, Date: time.Now().UTC()}
}

// NewRateLimitedMetric builds the RateLimited variant of Metric.
func NewRateLimitedMetric(ea *EventAccess, key string) Metric {
	return Metric{Kind: MetricRateLimited, EventAccess: ea, RateLimitedKey: key, Date: time.Now().UTC()}
}

// Ownership returns the owning tenant regardless of variant.
func (m Metric) Ownership() Ownership {
	switch m.Kind {
	case MetricRateLimited:
		return m.EventAccess.Ownership
	default:
		return m.Connection.Ownership
	}
}

// Platform returns the platform name regardless of variant.
func (m Metric) Platform() string {
	switch m.Kind {
	case MetricRateLimited:
		return m.EventAccess.Platform
	default:
		return m.Connection.Platform
	}
}

// MetricDocument is the persisted shape under metrics.{clientId /
// metricSystemId}: exactly the six §3 counters, keyed by the current date.
// Ownership and RecordMetadata are carried so the admin catalog's generic
// CRUD endpoint (spec.md §6) can list/describe metric documents the same
// way it does every other collection; the counters themselves remain
// append/upsert-only through metrics.BuildUpdate's $inc paths, never
// through the admin PATCH verb.
type MetricDocument struct {
	Id             string                    `json:"id" bson:"_id"`
	CreatedAt      *int64                    `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	Counters       map[string]map[string]any `json:"counters,omitempty" bson:"-"` // documentation only; actual writes are $inc paths, see metrics.BuildUpdate
	Ownership      Ownership                 `json:"ownership" bson:"ownership"`
	RecordMetadata RecordMetadata            `json:"recordMetadata" bson:",inline"`
}

const (
	MetricTotalKey     = "total"
	MetricPlatformsKey = "platforms"
	MetricDailyKey     = "daily"
	MetricMonthlyKey   = "monthly"
	MetricCreatedAtKey = "createdAt"
)
