// Package tracker implements the analytics-event emission side of the
// metric pipeline (spec.md §4.7's "emit a tracking event" step), grounded
// on original_source/api/src/domain/track.rs's Track trait with its
// LoggerTracker and PosthogTracker implementations.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/entities"
)

// Tracker is the analytics sink every metric is handed to after its
// counters are persisted. Implementations must not block the caller for
// longer than a short network timeout — tracking is best-effort.
//
// TrackMany is the batch variant the metric pipeline's local buffer
// flushes through (spec.md §4.7: buffer non-passthrough metrics, flush
// via tracker.trackMany on MAX_BUFFER_SIZE or idle timeout), grounded on
// track.rs's Track::track_many_metrics.
type Tracker interface {
	Track(ctx context.Context, m entities.Metric) error
	TrackMany(ctx context.Context, ms []entities.Metric) error
}

// event is the wire payload built from a Metric, following track.rs's
// Metric::track() property set for the Unified/Passthrough cases.
type event struct {
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties"`
	Timestamp  time.Time      `json:"timestamp"`
}

func buildEvent(m entities.Metric) event {
	ownership := m.Ownership()
	distinctID := ownership.Id
	if ownership.UserId != nil && *ownership.UserId != "" {
		distinctID = *ownership.UserId
	}

	props := map[string]any{
		"platform": m.Platform(),
		"clientId": ownership.ClientId,
	}

	switch m.Kind {
	case entities.MetricRateLimited:
		props["key"] = m.RateLimitedKey
	default:
		if c := m.Connection; c != nil {
			props["connectionDefinitionId"] = string(c.ConnectionDefinitionId)
			props["environment"] = string(c.Environment)
			props["key"] = c.Key
			props["platformVersion"] = c.PlatformVersion
			props["version"] = c.RecordMetadata.Version
		}
		if m.Action != nil {
			props["action"] = m.Action.Kind
		}
	}

	return event{
		Event:      m.Kind.EventName(),
		DistinctID: distinctID,
		Properties: props,
		Timestamp:  m.Date,
	}
}

// LoggerTracker just logs the event it would have sent — the default
// tracker when POSTHOG_WRITE_KEY is not set, mirroring track.rs's
// LoggerTracker which only writes a tracing::info! line.
type LoggerTracker struct{}

func (LoggerTracker) Track(ctx context.Context, m entities.Metric) error {
	log.Info().Interface("event", buildEvent(m)).Msg("tracking event")
	return nil
}

func (LoggerTracker) TrackMany(ctx context.Context, ms []entities.Metric) error {
	for _, m := range ms {
		log.Info().Interface("event", buildEvent(m)).Msg("tracking event")
	}
	return nil
}

// PosthogTracker POSTs a capture payload to a Posthog-compatible ingestion
// endpoint, following the shape the original's PosthogTracker builds via
// posthog-rs's Event/capture.
type PosthogTracker struct {
	client   *http.Client
	apiKey   string
	endpoint string
}

// NewPosthogTracker builds a PosthogTracker posting to endpoint with apiKey.
func NewPosthogTracker(apiKey, endpoint string, timeout time.Duration) *PosthogTracker {
	return &PosthogTracker{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		endpoint: endpoint,
	}
}

type capturePayload struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (t *PosthogTracker) Track(ctx context.Context, m entities.Metric) error {
	ev := buildEvent(m)
	return t.post(ctx, capturePayload{
		APIKey:     t.apiKey,
		Event:      ev.Event,
		DistinctID: ev.DistinctID,
		Properties: ev.Properties,
		Timestamp:  ev.Timestamp,
	})
}

// batchPayload is Posthog's capture-batch shape, used by TrackMany in
// place of posthog-rs's capture_batch (no Posthog Go SDK exists in the
// retrieved pack, so the HTTP call is a plain net/http POST — see
// DESIGN.md).
type batchPayload struct {
	APIKey string           `json:"api_key"`
	Batch  []capturePayload `json:"batch"`
}

func (t *PosthogTracker) TrackMany(ctx context.Context, ms []entities.Metric) error {
	if len(ms) == 0 {
		return nil
	}
	batch := make([]capturePayload, len(ms))
	for i, m := range ms {
		ev := buildEvent(m)
		batch[i] = capturePayload{
			APIKey:     t.apiKey,
			Event:      ev.Event,
			DistinctID: ev.DistinctID,
			Properties: ev.Properties,
			Timestamp:  ev.Timestamp,
		}
	}
	return t.post(ctx, batchPayload{APIKey: t.apiKey, Batch: batch})
}

func (t *PosthogTracker) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("could not track event")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Msg("could not track event")
		return fmt.Errorf("tracker endpoint returned %d", resp.StatusCode)
	}
	return nil
}
