// Package oauth implements spec.md §4.5's OAuth provisioning state
// machine, ported from original_source/api/src/logic/oauth.rs's
// oauth_handler end to end: resolve the platform's OAuth definition and
// client secret, call the OAuth compute service, persist the resulting
// secret, mint an EventAccess + Connection pair, and return the sanitized
// Connection.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/cache"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/secrets"
	"github.com/picahq/pica-gateway/internal/store"
	"github.com/picahq/pica-gateway/internal/template"
)

// DefaultNamespace matches the original's DEFAULT_NAMESPACE constant used
// when synthesizing a Connection key.
const DefaultNamespace = "default"

// expirySafetyMargin is subtracted from the OAuth response's expiresIn
// when computing ExpiresAt, the clock-skew cushion spec.md §4.5 calls out.
const expirySafetyMargin = 120 * time.Second

// Request is the inbound payload of POST /oauth/{platform}.
type Request struct {
	IsEngineeringAccount  bool                             `json:"__isEngineeringAccount__"`
	ConnectionDefinitionId entities.Id                     `json:"connectionDefinitionId"`
	ClientId              string                           `json:"clientId"`
	Payload               map[string]any                   `json:"payload,omitempty"`
	Name                  *string                          `json:"name,omitempty"`
	Group                 *string                          `json:"group,omitempty"`
	Identity              *string                          `json:"identity,omitempty"`
	IdentityType          *entities.ConnectionIdentityType `json:"identityType,omitempty"`
}

// Handler wires every dependency oauth_handler needs.
type Handler struct {
	catalog              *cache.Catalog
	settingsStore        *store.CRUDStore[entities.Settings]
	eventAccessStore     *store.CRUDStore[entities.EventAccess]
	connectionStore      *store.CRUDStore[entities.Connection]
	secretsClient        secrets.Client
	template             *template.Engine
	httpClient           *http.Client
	oauthURL             string
	accessKeyPassword    string
	engineeringAccountID string
}

// New builds a Handler.
func New(
	catalog *cache.Catalog,
	settingsStore *store.CRUDStore[entities.Settings],
	eventAccessStore *store.CRUDStore[entities.EventAccess],
	connectionStore *store.CRUDStore[entities.Connection],
	secretsClient secrets.Client,
	tmpl *template.Engine,
	oauthURL, accessKeyPassword, engineeringAccountID string,
	timeout time.Duration,
) *Handler {
	return &Handler{
		catalog:              catalog,
		settingsStore:        settingsStore,
		eventAccessStore:     eventAccessStore,
		connectionStore:      connectionStore,
		secretsClient:        secretsClient,
		template:             tmpl,
		httpClient:           &http.Client{Timeout: timeout},
		oauthURL:             oauthURL,
		accessKeyPassword:    accessKeyPassword,
		engineeringAccountID: engineeringAccountID,
	}
}

// Provision runs the full oauth_handler flow for platform on behalf of
// userEventAccess, returning the newly minted, sanitized Connection.
func (h *Handler) Provision(ctx context.Context, userEventAccess entities.EventAccess, platform string, req Request) (entities.Connection, error) {
	oauthDef, err := h.catalog.ConnectionOAuthDefinition.Get(ctx, platform)
	if err != nil {
		return entities.Connection{}, err
	}

	ownershipID := userEventAccess.Ownership.Id
	if req.IsEngineeringAccount {
		ownershipID = h.engineeringAccountID
	}
	settings, err := h.userSettings(ctx, ownershipID)
	if err != nil {
		return entities.Connection{}, err
	}

	secretsServiceID, ok := settings.PlatformSecret(req.ConnectionDefinitionId, userEventAccess.Environment)
	if !ok {
		return entities.Connection{}, apperr.New(apperr.KindBadRequest, "connection definition does not have a secret entry")
	}

	var platformSecret entities.PlatformSecretPayload
	if err := secrets.DecryptJSON(ctx, h.secretsClient, secretsServiceID, &platformSecret); err != nil {
		return entities.Connection{}, err
	}

	oauthPayload := map[string]any{
		"clientId":     req.ClientId,
		"clientSecret": platformSecret.ClientSecret,
		"metadata":     mergeEnvironment(req.Payload, userEventAccess.Environment),
	}

	renderedDef := oauthDef
	if oauthDef.IsFullTemplateEnabled && h.template != nil {
		renderedDef, err = h.template.RenderOAuthDefinition(oauthDef, oauthPayload)
		if err != nil {
			return entities.Connection{}, apperr.Wrap(apperr.KindScriptError, "failed to render oauth definition template", err)
		}
	}

	oauthResp, rawResp, err := h.callComputeService(ctx, renderedDef, oauthPayload, platformSecret)
	if err != nil {
		return entities.Connection{}, err
	}

	secretsServiceID, err = h.persistOAuthSecret(ctx, oauthResp, oauthPayload, rawResp, userEventAccess.Ownership.Id)
	if err != nil {
		return entities.Connection{}, err
	}

	connDef, err := h.catalog.ConnectionDefinition.Get(ctx, req.ConnectionDefinitionId)
	if err != nil {
		return entities.Connection{}, err
	}

	uid := strings.ReplaceAll(uuid.NewString(), "-", "")
	group, identity := resolveGroupIdentity(uid, req.Group, req.Identity)
	connectionKey := synthesizeConnectionKey(userEventAccess.Environment, connDef.Platform, uid, identity)

	ea := entities.EventAccess{
		Id:             entities.Now(entities.IdPrefixEventAccess),
		Name:           fmt.Sprintf("%s %s", userEventAccess.Environment, connDef.Name),
		Ownership:      userEventAccess.Ownership,
		Environment:    userEventAccess.Environment,
		Platform:       connDef.Platform,
		ConnectionType: connDef.Type,
		Paths:          connDef.Paths,
		Throughput:     userEventAccess.Throughput,
		RecordMetadata: entities.NewRecordMetadata(),
	}
	ea.AccessKey, err = newAccessKey(ea, h.accessKeyPassword)
	if err != nil {
		return entities.Connection{}, err
	}
	if err := h.eventAccessStore.Insert(ctx, ea); err != nil {
		return entities.Connection{}, err
	}

	expiresIn := oauthResp.ExpiresIn
	expiresAt := time.Now().Add(time.Duration(expiresIn)*time.Second - expirySafetyMargin).Unix()

	conn := entities.Connection{
		Id:                     entities.Now(entities.IdPrefixConnection),
		Name:                   req.Name,
		Key:                    connectionKey,
		Platform:               platform,
		PlatformVersion:        connDef.PlatformVersion,
		Environment:            userEventAccess.Environment,
		ConnectionDefinitionId: connDef.Id,
		Type:                   connDef.Type,
		SecretsServiceId:       secretsServiceID,
		EventAccessId:          ea.Id,
		AccessKey:              ea.AccessKey,
		Group:                  group,
		Identity:               &identity,
		IdentityType:           req.IdentityType,
		Settings:               connDef.Settings,
		Throughput:             entities.Throughput{Key: connectionKey, Limit: userEventAccess.Throughput},
		OAuth: &entities.OAuthState{
			Enabled:      true,
			DefinitionId: oauthDef.Id,
			ExpiresIn:    &expiresIn,
			ExpiresAt:    &expiresAt,
		},
		Ownership:      userEventAccess.Ownership,
		RecordMetadata: entities.NewRecordMetadata(),
	}

	if err := h.connectionStore.Insert(ctx, conn); err != nil {
		return entities.Connection{}, err
	}

	return conn.Sanitized(), nil
}

// userSettings loads the Settings document owned by ownershipID. Settings
// is keyed by its own Id, not by ownership, so this goes through a direct
// filter rather than CRUDStore.Get.
func (h *Handler) userSettings(ctx context.Context, ownershipID string) (entities.Settings, error) {
	var settings entities.Settings
	filter := bson.M{"ownership.buildableId": ownershipID, "recordMetadata.deleted": bson.M{"$ne": true}}
	err := h.settingsStore.Collection().FindOne(ctx, filter).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return entities.Settings{}, apperr.New(apperr.KindNotFound, "settings not found for account")
	}
	if err != nil {
		return entities.Settings{}, apperr.Wrap(apperr.KindIOErr, "failed to load settings", err)
	}
	return settings, nil
}

func mergeEnvironment(payload map[string]any, env entities.Environment) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["environment"] = string(env)
	return out
}

func (h *Handler) callComputeService(ctx context.Context, def entities.ConnectionOAuthDefinition, oauthPayload map[string]any, secret entities.PlatformSecretPayload) (entities.OAuthResponse, map[string]any, error) {
	reqBody := map[string]any{
		"connectionOAuthDefinition": def,
		"payload":                   oauthPayload,
		"secret": map[string]any{
			"clientId":     secret.ClientId,
			"clientSecret": secret.ClientSecret,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return entities.OAuthResponse{}, nil, apperr.Wrap(apperr.KindIOErr, "failed to marshal oauth request", err)
	}

	url := strings.TrimRight(h.oauthURL, "/") + "/oauth/dynamic-dispatch/init"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return entities.OAuthResponse{}, nil, apperr.Wrap(apperr.KindIOErr, "failed to build oauth request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("failed to execute oauth request")
		return entities.OAuthResponse{}, nil, apperr.Wrap(apperr.KindScriptError, "failed to execute oauth request", err)
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return entities.OAuthResponse{}, nil, apperr.Wrap(apperr.KindDeserializeError, "failed to decode oauth response", err)
	}

	rawBytes, _ := json.Marshal(raw)
	var decoded entities.OAuthResponse
	if err := json.Unmarshal(rawBytes, &decoded); err != nil {
		return entities.OAuthResponse{}, nil, apperr.Wrap(apperr.KindScriptError, "failed to decode oauth response shape", err)
	}

	return decoded, raw, nil
}

func (h *Handler) persistOAuthSecret(ctx context.Context, resp entities.OAuthResponse, payload map[string]any, rawResponse map[string]any, ownershipID string) (string, error) {
	doc := map[string]any{
		"accessToken":  resp.AccessToken,
		"expiresIn":    resp.ExpiresIn,
		"refreshToken": resp.RefreshToken,
		"tokenType":    resp.TokenType,
		"clientId":     payload["clientId"],
		"clientSecret": payload["clientSecret"],
		"raw":          rawResponse,
	}
	blob, err := json.Marshal(doc)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOErr, "failed to marshal oauth secret", err)
	}
	id, err := h.secretsClient.Encrypt(ctx, blob)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "failed to create oauth secret", err)
	}
	return id, nil
}

// resolveGroupIdentity applies spec.md §4.5's defaulting rule: group
// defaults to the freshly minted uid, identity defaults to group, and
// either may be overridden by the caller.
func resolveGroupIdentity(uid string, reqGroup, reqIdentity *string) (group, identity string) {
	group = uid
	if reqGroup != nil && *reqGroup != "" {
		group = *reqGroup
	}
	identity = group
	if reqIdentity != nil && *reqIdentity != "" {
		identity = *reqIdentity
	}
	return group, identity
}

// synthesizeConnectionKey builds a Connection.Key of the form
// "{environment}::{platform}::{namespace}::{suffix}", where suffix is the
// bare uid when identity equals it, or "{uid}|{sanitized identity}"
// otherwise. Spaces and colons in a caller-supplied identity get replaced
// with dashes so the identity can live inside the "::"-delimited key.
func synthesizeConnectionKey(env entities.Environment, platform, uid, identity string) string {
	suffix := uid
	if identity != uid {
		sanitized := strings.NewReplacer(" ", "-", ":", "-").Replace(identity)
		suffix = fmt.Sprintf("%s|%s", uid, sanitized)
	}
	return fmt.Sprintf("%s::%s::%s::%s", env, platform, DefaultNamespace, suffix)
}

// newAccessKey mints an AccessKey for a freshly created EventAccess.
func newAccessKey(ea entities.EventAccess, password string) (string, error) {
	payload := entities.AccessKeyPayload{
		Id:          ea.Id,
		OwnershipId: ea.Ownership.Id,
		Environment: ea.Environment,
		Version:     "1",
		EventType:   "oauth",
	}
	return auth.EncodeAccessKey(payload, password)
}
