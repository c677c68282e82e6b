package entities

// Action is one of the catalog's supported operation kinds for a platform
// model, or the Passthrough variant used by the raw-forwarding dispatcher.
type Action struct {
	Kind   string  `json:"kind" bson:"kind"` // create|update|getOne|getMany|getCount|delete|upsert|custom|passthrough
	Path   string  `json:"path,omitempty" bson:"path,omitempty"`
	Method string  `json:"method,omitempty" bson:"method,omitempty"`
	Id     *string `json:"id,omitempty" bson:"id,omitempty"`
}

// Destination is everything the extractor needs to execute one upstream
// call: which platform, which action, and which connection to authenticate
// as.
type Destination struct {
	Platform      string `json:"platform"`
	Action        Action `json:"action"`
	ConnectionKey string `json:"connectionKey"`
}

// ConnectionDefinition is a catalog entry describing one platform: its
// display name, its connection type, the OAuth/API-key shape it expects,
// and the path templates its EventAccess-es inherit.
type ConnectionDefinition struct {
	Id              Id             `json:"id" bson:"_id"`
	Platform        string         `json:"platform" bson:"platform"`
	PlatformVersion string         `json:"platformVersion" bson:"platformVersion"`
	Name            string         `json:"name" bson:"name"`
	Type            string         `json:"type" bson:"type"`
	Paths           []PathTemplate `json:"paths,omitempty" bson:"paths,omitempty"`
	Settings        map[string]any `json:"settings,omitempty" bson:"settings,omitempty"`
	RecordMetadata  RecordMetadata `json:"recordMetadata" bson:",inline"`
}

// ConnectionModelDefinition (CMD) describes one upstream endpoint: its
// sparse projection is the only view the hot-path dispatcher ever loads.
type ConnectionModelDefinition struct {
	Id                     Id     `json:"id" bson:"_id"`
	Title                  string `json:"title" bson:"title"`
	Name                   string `json:"name" bson:"name"`
	Path                   string `json:"path" bson:"path"`
	Action                 string `json:"action" bson:"action"` // HTTP method, uppercased
	ActionName             string `json:"actionName" bson:"actionName"`
	ConnectionPlatform     string `json:"connectionPlatform" bson:"connectionPlatform"`
	ConnectionDefinitionId Id     `json:"connectionDefinitionId" bson:"connectionDefinitionId"`
	PlatformVersion        string `json:"platformVersion" bson:"platformVersion"`
	Key                    string `json:"key" bson:"key"`
}

// ConnectionOAuthDefinition is the catalog's description of a platform's
// OAuth compute scripts. The script bodies themselves are opaque to this
// gateway — they are evaluated by the out-of-scope OAuth script runner —
// this struct only carries enough shape to drive the init POST and the
// optional full-template render.
type ConnectionOAuthDefinition struct {
	Id                     Id             `json:"id" bson:"_id"`
	ConnectionPlatform     string         `json:"connectionPlatform" bson:"connectionPlatform"`
	IsFullTemplateEnabled  bool           `json:"isFullTemplateEnabled" bson:"isFullTemplateEnabled"`
	Compute                map[string]any `json:"compute,omitempty" bson:"compute,omitempty"`
	RecordMetadata         RecordMetadata `json:"recordMetadata" bson:",inline"`
}

// ConnectedPlatformEntry ties one connectionDefinitionId+environment pair
// to the secretsServiceId of that platform's client id/secret.
type ConnectedPlatformEntry struct {
	ConnectionDefinitionId Id          `json:"connectionDefinitionId" bson:"connectionDefinitionId"`
	Environment            Environment `json:"environment" bson:"environment"`
	SecretsServiceId       string      `json:"secretsServiceId" bson:"secretsServiceId"`
}

// Settings is the tenant-scoped (or engineering-account) document holding
// the connectedPlatforms table the OAuth handler consults in step 2.
type Settings struct {
	Id                Id                       `json:"id" bson:"_id"`
	Ownership         Ownership                `json:"ownership" bson:"ownership"`
	ConnectedPlatforms []ConnectedPlatformEntry `json:"connectedPlatforms" bson:"connectedPlatforms"`
	RecordMetadata    RecordMetadata           `json:"recordMetadata" bson:",inline"`
}

// PlatformSecret finds a connectedPlatforms entry by
// (connectionDefinitionId, environment), falling back to the first entry
// with a matching connectionDefinitionId regardless of environment.
func (s Settings) PlatformSecret(connectionDefinitionId Id, env Environment) (string, bool) {
	var fallback *ConnectedPlatformEntry
	for i := range s.ConnectedPlatforms {
		entry := &s.ConnectedPlatforms[i]
		if entry.ConnectionDefinitionId != connectionDefinitionId {
			continue
		}
		if entry.Environment == env {
			return entry.SecretsServiceId, true
		}
		if fallback == nil {
			fallback = entry
		}
	}
	if fallback != nil {
		return fallback.SecretsServiceId, true
	}
	return "", false
}

// PlatformSecretPayload is the decrypted KMS payload behind a
// ConnectedPlatforms.SecretsServiceId entry.
type PlatformSecretPayload struct {
	ClientId     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// OAuthResponse is what the OAuth compute service is required to return
// from an init/refresh call.
type OAuthResponse struct {
	AccessToken  string  `json:"accessToken"`
	ExpiresIn    int64   `json:"expiresIn"`
	RefreshToken *string `json:"refreshToken,omitempty"`
	TokenType    *string `json:"tokenType,omitempty"`
}
