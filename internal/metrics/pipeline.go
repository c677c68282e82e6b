// Package metrics implements spec.md §4.7's metric pipeline: a buffered
// channel of entities.Metric fed by the dispatcher, flushed by a pool of
// workers that upsert the six-key $inc document into two destinations
// (by clientId and by the fixed metricSystemId) concurrently, then hand
// non-passthrough metrics to a local ring buffer that flushes to the
// analytics tracker in batches (tracker.TrackMany) on MAX_BUFFER_SIZE or
// idle timeout.
//
// Grounded on original_source/api/src/domain/metrics.rs's
// update_doc/track/track_many, with the dual-upsert fan-out done via
// golang.org/x/sync/errgroup the way Generativebots-ocx-backend-go-svc
// fans its escrow writes out.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/tracker"
)

// Metric document path segments, matching the original's CREATED_AT_KEY /
// TOTAL_KEY / PLATFORMS_KEY / DAILY_KEY / MONTHLY_KEY constants.
const (
	totalKey     = "total"
	platformsKey = "platforms"
	dailyKey     = "daily"
	monthlyKey   = "monthly"
	createdAtKey = "createdAt"
)

// Prometheus counters, grounded on Generativebots-ocx-backend-go-svc's
// internal/escrow/metrics.go promauto.NewCounterVec pattern.
var (
	emitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pica_gateway_metrics_emitted_total",
		Help: "Metrics handed to the metric pipeline, by kind.",
	}, []string{"kind"})
	dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pica_gateway_metrics_dropped_total",
		Help: "Metrics dropped because the pipeline channel was full.",
	}, []string{"kind"})
	flushLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "pica_gateway_metrics_flush_seconds",
		Help: "Time spent upserting one metric's dual documents.",
	}, []string{"outcome"})
	trackBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "pica_gateway_metrics_track_batch_size",
		Help: "Size of each analytics-tracker batch, by flush trigger.",
	}, []string{"trigger"})
	trackDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pica_gateway_metrics_track_dropped_total",
		Help: "Metrics dropped from the analytics-tracker buffer because it was full.",
	})
)

// defaultTrackBufferSize/defaultTrackIdleTimeout back MAX_BUFFER_SIZE and
// the idle flush window spec.md §4.7 describes for tracker.trackMany,
// when the caller doesn't override them via New.
const (
	defaultTrackBufferSize  = 20
	defaultTrackIdleTimeout = 5 * time.Second
)

// Pipeline owns the metric channel and the worker pool draining it, plus
// a local ring buffer of non-passthrough metrics that feeds the analytics
// tracker's batch path (spec.md §4.7 step 2).
type Pipeline struct {
	coll           *mongo.Collection
	ch             chan entities.Metric
	metricSystemID string
	tracker        tracker.Tracker
	workers        int

	trackCh          chan entities.Metric
	trackBufferSize  int
	trackIdleTimeout time.Duration
}

// New builds a Pipeline writing to coll, buffered to channelSize, run by
// workers goroutines, tracking via t. trackBufferSize/trackIdleTimeout
// tune the analytics-tracker batch buffer; non-positive values fall back
// to sane defaults.
func New(coll *mongo.Collection, channelSize, workers int, metricSystemID string, t tracker.Tracker, trackBufferSize int, trackIdleTimeout time.Duration) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	if trackBufferSize <= 0 {
		trackBufferSize = defaultTrackBufferSize
	}
	if trackIdleTimeout <= 0 {
		trackIdleTimeout = defaultTrackIdleTimeout
	}
	return &Pipeline{
		coll:             coll,
		ch:               make(chan entities.Metric, channelSize),
		metricSystemID:   metricSystemID,
		tracker:          t,
		workers:          workers,
		trackCh:          make(chan entities.Metric, channelSize),
		trackBufferSize:  trackBufferSize,
		trackIdleTimeout: trackIdleTimeout,
	}
}

// Emit enqueues m for asynchronous persistence. It never blocks the
// caller: if the channel is full the metric is dropped and logged, per
// spec.md §4.7's "never block the client response" requirement.
func (p *Pipeline) Emit(m entities.Metric) {
	emitted.WithLabelValues(string(m.Kind)).Inc()
	select {
	case p.ch <- m:
	default:
		dropped.WithLabelValues(string(m.Kind)).Inc()
		log.Warn().Str("kind", string(m.Kind)).Msg("metric pipeline channel full, dropping metric")
	}
}

// Run drains the channel with p.workers goroutines until ctx is canceled
// or the channel is closed by the caller, alongside one collector
// goroutine that buffers non-passthrough metrics for the tracker's batch
// path and flushes that buffer when ctx is canceled. Metrics still queued
// in the channel when ctx is canceled are not persisted.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case m, ok := <-p.ch:
					if !ok {
						return nil
					}
					p.flush(ctx, m)
				}
			}
		})
	}
	g.Go(func() error { return p.runTrackLoop(ctx) })
	return g.Wait()
}

// Close stops accepting new metrics; call after Run's ctx is canceled and
// all producers have stopped.
func (p *Pipeline) Close() { close(p.ch) }

// runTrackLoop owns the tracker batch buffer: it accumulates metrics
// handed to it by flush and calls tracker.TrackMany when the buffer
// reaches trackBufferSize or after trackIdleTimeout of inactivity,
// whichever comes first, per spec.md §4.7 step 2.
func (p *Pipeline) runTrackLoop(ctx context.Context) error {
	if p.tracker == nil {
		return nil
	}

	buf := make([]entities.Metric, 0, p.trackBufferSize)
	timer := time.NewTimer(p.trackIdleTimeout)
	defer timer.Stop()

	flushBuf := func(trigger string) {
		if len(buf) == 0 {
			return
		}
		batch := buf
		buf = make([]entities.Metric, 0, p.trackBufferSize)
		trackBatchSize.WithLabelValues(trigger).Observe(float64(len(batch)))
		if err := p.tracker.TrackMany(context.Background(), batch); err != nil {
			log.Warn().Err(err).Int("count", len(batch)).Str("trigger", trigger).Msg("failed to track metric batch")
		}
	}

	for {
		select {
		case <-ctx.Done():
			flushBuf("shutdown")
			return nil
		case m, ok := <-p.trackCh:
			if !ok {
				flushBuf("shutdown")
				return nil
			}
			buf = append(buf, m)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.trackIdleTimeout)
			if len(buf) >= p.trackBufferSize {
				flushBuf("full")
			}
		case <-timer.C:
			flushBuf("idle")
			timer.Reset(p.trackIdleTimeout)
		}
	}
}

// flush performs the dual upsert (by clientId, by metricSystemId) for one
// metric, logging but not propagating failures — metric loss must never
// surface to the original request. Non-passthrough metrics are also
// handed to the tracker batch buffer (runTrackLoop); passthrough metrics
// are never tracked, per spec.md §4.7 step 2.
func (p *Pipeline) flush(ctx context.Context, m entities.Metric) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.upsert(gctx, m.Ownership().ClientId, m)
	})
	if p.metricSystemID != "" {
		g.Go(func() error {
			return p.upsert(gctx, p.metricSystemID, m)
		})
	}

	outcome := "ok"
	if err := g.Wait(); err != nil {
		outcome = "error"
		log.Error().Err(err).Str("kind", string(m.Kind)).Msg("failed to persist metric")
	}
	flushLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if p.tracker == nil || m.Kind == entities.MetricPassthrough {
		return
	}
	select {
	case p.trackCh <- m:
	default:
		trackDropped.Inc()
		log.Warn().Str("kind", string(m.Kind)).Msg("tracker buffer full, dropping metric from analytics batch")
	}
}

// upsert applies BuildUpdate(m) against the document keyed by docID.
func (p *Pipeline) upsert(ctx context.Context, docID string, m entities.Metric) error {
	_, err := p.coll.UpdateByID(ctx, docID, BuildUpdate(m), options.Update().SetUpsert(true))
	return err
}

// BuildUpdate renders m into the six-key $inc document described in
// spec.md §4.7, one literal port of update_doc()'s path construction.
func BuildUpdate(m entities.Metric) bson.M {
	platform := m.Platform()
	kind := string(m.Kind)
	day := m.Date.Format("2006-01-02")
	month := m.Date.Format("2006-01")

	return bson.M{
		"$inc": bson.M{
			fmt.Sprintf("%s.%s", kind, totalKey):                                              1,
			fmt.Sprintf("%s.%s.%s.%s", kind, platformsKey, platform, totalKey):                 1,
			fmt.Sprintf("%s.%s.%s", kind, dailyKey, day):                                       1,
			fmt.Sprintf("%s.%s.%s.%s.%s", kind, platformsKey, platform, dailyKey, day):          1,
			fmt.Sprintf("%s.%s.%s", kind, monthlyKey, month):                                    1,
			fmt.Sprintf("%s.%s.%s.%s.%s", kind, platformsKey, platform, monthlyKey, month):       1,
		},
		"$setOnInsert": bson.M{
			createdAtKey:      m.Date.UnixMilli(),
			"ownership":       m.Ownership(),
			"recordMetadata":  entities.NewRecordMetadata(),
		},
	}
}
