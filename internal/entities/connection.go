package entities

// OAuthState is the closed sum describing whether a Connection is OAuth
// managed, modeled as a discriminated union rather than a bare pointer so
// the zero value ("Disabled") can never be mistaken for "not yet loaded".
type OAuthState struct {
	Enabled      bool   `json:"enabled" bson:"enabled"`
	DefinitionId Id     `json:"connectionOAuthDefinitionId,omitempty" bson:"connectionOAuthDefinitionId,omitempty"`
	ExpiresIn    *int64 `json:"expiresIn,omitempty" bson:"expiresIn,omitempty"`
	ExpiresAt    *int64 `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
}

// Disabled reports the "no OAuth" variant.
func (o OAuthState) Disabled() bool { return !o.Enabled }

// Throughput is a per-key rate budget. Connections carry their own
// (independent of the originating EventAccess's), restored from
// original_source/api/src/logic/oauth.rs where connection.throughput is set
// directly rather than inherited by reference.
type Throughput struct {
	Key   string `json:"key" bson:"key"`
	Limit int    `json:"limit" bson:"limit"`
}

// ConnectionIdentityType classifies the caller-supplied identity string
// used when synthesizing a Connection key during OAuth provisioning.
type ConnectionIdentityType string

const (
	IdentityTypeUser         ConnectionIdentityType = "user"
	IdentityTypeOrganization ConnectionIdentityType = "organization"
	IdentityTypeTeam         ConnectionIdentityType = "team"
)

// Connection binds one EventAccess to a single third-party account.
type Connection struct {
	Id                     Id                     `json:"id" bson:"_id"`
	Name                   *string                `json:"name,omitempty" bson:"name,omitempty"`
	Key                    string                 `json:"key" bson:"key"`
	Platform               string                 `json:"platform" bson:"platform"`
	PlatformVersion        string                 `json:"platformVersion" bson:"platformVersion"`
	Environment            Environment            `json:"environment" bson:"environment"`
	ConnectionDefinitionId Id                     `json:"connectionDefinitionId" bson:"connectionDefinitionId"`
	Type                   string                 `json:"type,omitempty" bson:"type,omitempty"`
	SecretsServiceId       string                 `json:"secretsServiceId" bson:"secretsServiceId"`
	EventAccessId          Id                     `json:"eventAccessId" bson:"eventAccessId"`
	AccessKey              string                 `json:"-" bson:"accessKey"`
	Group                  string                 `json:"group" bson:"group"`
	Identity               *string                `json:"identity,omitempty" bson:"identity,omitempty"`
	IdentityType           *ConnectionIdentityType `json:"identityType,omitempty" bson:"identityType,omitempty"`
	Settings               map[string]any         `json:"settings,omitempty" bson:"settings,omitempty"`
	Throughput             Throughput             `json:"throughput" bson:"throughput"`
	OAuth                  *OAuthState            `json:"oauth,omitempty" bson:"oauth,omitempty"`
	HasError               bool                   `json:"hasError" bson:"hasError"`
	Error                  *string                `json:"error,omitempty" bson:"error,omitempty"`
	Ownership              Ownership              `json:"ownership" bson:"ownership"`
	RecordMetadata         RecordMetadata         `json:"recordMetadata" bson:",inline"`
}

// Sanitized clears the raw AccessKey, the field that must never leave the
// gateway; every other field, Ownership included, is returned unchanged.
// json tags already omit AccessKey; Sanitized exists as the explicit call
// site so the omission reads as intentional.
func (c Connection) Sanitized() Connection {
	c.AccessKey = ""
	return c
}
