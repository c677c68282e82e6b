package entities

// Environment scopes an EventAccess/Connection to a test or live upstream
// account. It is part of the Connection key and of every list filter unless
// x-pica-show-all-environments is set.
type Environment string

const (
	EnvironmentTest Environment = "test"
	EnvironmentLive Environment = "live"
)

// PathTemplate is one path-extraction template attached to an EventAccess,
// used by the connection-model lookup to resolve a caller-supplied field
// name back to the catalog's canonical path.
type PathTemplate struct {
	Name string `json:"name" bson:"name"`
	Path string `json:"path" bson:"path"`
}

// EventAccess is an API credential: it identifies the tenant (Ownership)
// and carries the per-second rate-limit budget enforced on every request
// authenticated with it.
type EventAccess struct {
	Id             Id             `json:"id" bson:"_id"`
	Name           string         `json:"name" bson:"name"`
	Ownership      Ownership      `json:"ownership" bson:"ownership"`
	Environment    Environment    `json:"environment" bson:"environment"`
	Platform       string         `json:"platform" bson:"platform"`
	Namespace      *string        `json:"namespace,omitempty" bson:"namespace,omitempty"`
	ConnectionType string         `json:"connectionType" bson:"connectionType"`
	AccessKey      string         `json:"accessKey" bson:"accessKey"`
	Throughput     int            `json:"throughput" bson:"throughput"`
	Paths          []PathTemplate `json:"paths,omitempty" bson:"paths,omitempty"`
	RecordMetadata RecordMetadata `json:"recordMetadata" bson:",inline"`
}

// AccessKeyPayload is the JSON blob an AccessKey decrypts to. Its embedded
// ownership must match the EventAccess.Ownership.Id it is attached to —
// this is the invariant spec.md §3 calls out for EventAccess.
type AccessKeyPayload struct {
	Id             Id          `json:"id"`
	OwnershipId    string      `json:"ownershipId"`
	Environment    Environment `json:"environment"`
	Version        string      `json:"version"`
	EventType      string      `json:"eventType"`
}
