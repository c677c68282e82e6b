package dispatch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/cache"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/events"
	"github.com/picahq/pica-gateway/internal/metrics"
	"github.com/picahq/pica-gateway/internal/secrets"
)

// PassthroughHeaderPrefix is prepended to every upstream response header
// except Content-Length, per spec.md §4.4 and original_source's
// PICA_PASSTHROUGH_HEADER constant.
const PassthroughHeaderPrefix = "x-pica-passthrough"

// Dispatcher executes passthrough (and, via a wrapped Extractor, unified)
// requests: CMD lookup, secret decrypt, upstream call, header translation,
// and fire-and-forget metric/event emission.
type Dispatcher struct {
	catalog         *cache.Catalog
	secrets         secrets.Client
	extractor       Extractor
	unifiedExtractor Extractor
	metrics         *metrics.Pipeline
	events          *events.Pipeline
	actionIDHdr     string
}

// New builds a Dispatcher. unifiedExtractor backs the /unified/* route;
// passing the same value as extractor is fine when no unified transform
// is configured, since UnifiedExtractor itself degrades to its inner
// Extractor.
func New(catalog *cache.Catalog, secretsClient secrets.Client, extractor, unifiedExtractor Extractor, m *metrics.Pipeline, e *events.Pipeline, actionIDHeader string) *Dispatcher {
	return &Dispatcher{catalog: catalog, secrets: secretsClient, extractor: extractor, unifiedExtractor: unifiedExtractor, metrics: m, events: e, actionIDHdr: actionIDHeader}
}

// Passthrough executes one raw-forwarding request on behalf of conn,
// following spec.md §4.4 end to end.
func (d *Dispatcher) Passthrough(ctx context.Context, conn entities.Connection, method, path string, actionID string, headers http.Header, query map[string]string, body []byte) (*UpstreamResponse, error) {
	start := time.Now()

	cmd, err := d.resolveCMD(ctx, conn.Platform, path, method, actionID)
	if err != nil {
		return nil, err
	}

	secret, err := d.decryptSecret(ctx, conn.SecretsServiceId)
	if err != nil {
		return nil, err
	}

	dest := entities.Destination{
		Platform: conn.Platform,
		Action: entities.Action{
			Kind:   "passthrough",
			Path:   path,
			Method: method,
		},
		ConnectionKey: conn.Key,
	}

	resp, execErr := d.extractor.Execute(ctx, dest, secret, headers, query, body)

	status := http.StatusInternalServerError
	if resp != nil {
		status = resp.StatusCode
	}

	go d.recordPassthrough(conn, cmd, method, path, status, time.Since(start))

	if execErr != nil {
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "upstream call failed", execErr)
	}
	return resp, nil
}

// Unified executes one /unified/* request. When enablePassthrough is true
// (the caller set X-PICA-ENABLE-PASSTHROUGH), it forwards the call through
// the same raw extractor Passthrough uses and records a Passthrough
// metric/event; otherwise it runs through the unified extractor and
// records a Unified metric/event, per spec.md §6.
func (d *Dispatcher) Unified(ctx context.Context, conn entities.Connection, method, path string, actionID string, enablePassthrough bool, headers http.Header, query map[string]string, body []byte) (*UpstreamResponse, error) {
	start := time.Now()

	cmd, err := d.resolveCMD(ctx, conn.Platform, path, method, actionID)
	if err != nil {
		return nil, err
	}

	secret, err := d.decryptSecret(ctx, conn.SecretsServiceId)
	if err != nil {
		return nil, err
	}

	kind := "unified"
	extractor := d.unifiedExtractor
	if enablePassthrough {
		kind = "passthrough"
		extractor = d.extractor
	}

	dest := entities.Destination{
		Platform: conn.Platform,
		Action: entities.Action{
			Kind:   kind,
			Path:   path,
			Method: method,
		},
		ConnectionKey: conn.Key,
	}

	resp, execErr := extractor.Execute(ctx, dest, secret, headers, query, body)

	status := http.StatusInternalServerError
	if resp != nil {
		status = resp.StatusCode
	}

	go d.recordUnified(conn, cmd, dest.Action, enablePassthrough, method, path, status, time.Since(start))

	if execErr != nil {
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "upstream call failed", execErr)
	}
	return resp, nil
}

// resolveCMD looks up the ConnectionModelDefinition either by the explicit
// x-pica-action-id header value or by the (platform, path, method) route,
// per spec.md §4.4's two lookup paths.
func (d *Dispatcher) resolveCMD(ctx context.Context, platform, path, method, actionID string) (entities.ConnectionModelDefinition, error) {
	if actionID != "" {
		return d.catalog.ConnectionModelDefinitionID.Get(ctx, entities.Id(actionID))
	}
	key := cache.CMDKey{Platform: platform, Path: path, Method: strings.ToUpper(method)}
	return d.catalog.ConnectionModelDefinitionRt.Get(ctx, key)
}

func (d *Dispatcher) decryptSecret(ctx context.Context, secretsServiceID string) ([]byte, error) {
	if secretsServiceID == "" {
		return nil, nil
	}
	return d.secrets.Decrypt(ctx, secretsServiceID)
}

// TranslateResponseHeaders copies h into a new header set the way
// spec.md §4.4 requires: Content-Length passed through verbatim, every
// other header renamed to "x-pica-passthrough-<name>".
func TranslateResponseHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		if strings.EqualFold(k, "Content-Length") {
			out[http.CanonicalHeaderKey(k)] = vs
			continue
		}
		out[http.CanonicalHeaderKey(PassthroughHeaderPrefix+"-"+k)] = vs
	}
	return out
}

// recordPassthrough emits the Metric and Event for one completed
// passthrough call. Run as its own goroutine so it never adds latency to
// the client response, matching the tokio::spawn fire-and-forget in
// original_source/api/src/logic/passthrough.rs.
func (d *Dispatcher) recordPassthrough(conn entities.Connection, cmd entities.ConnectionModelDefinition, method, path string, status int, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.Emit(entities.NewPassthroughMetric(&conn))
	}
	if d.events != nil {
		evt := entities.NewEvent(entities.EventTypePassthrough, conn, method, path, status, duration.Milliseconds())
		evt.ActionName = cmd.ActionName
		d.events.Emit(evt)
	}
}

// recordUnified emits the Metric and Event for one completed /unified/*
// call, choosing the Passthrough or Unified variant of each the same way
// Unified chose an extractor.
func (d *Dispatcher) recordUnified(conn entities.Connection, cmd entities.ConnectionModelDefinition, action entities.Action, enablePassthrough bool, method, path string, status int, duration time.Duration) {
	evtType := entities.EventTypeUnified
	if enablePassthrough {
		evtType = entities.EventTypePassthrough
	}

	if d.metrics != nil {
		if enablePassthrough {
			d.metrics.Emit(entities.NewPassthroughMetric(&conn))
		} else {
			d.metrics.Emit(entities.NewUnifiedMetric(&conn, action))
		}
	}
	if d.events != nil {
		evt := entities.NewEvent(evtType, conn, method, path, status, duration.Milliseconds())
		evt.ActionName = cmd.ActionName
		d.events.Emit(evt)
	}
}
