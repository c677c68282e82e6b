// Package events implements spec.md §4.6's event pipeline: passthrough and
// unified calls are logged asynchronously through a bounded channel, drained
// by a single collector goroutine into a slice buffer that flushes on
// EventSaveBufferSize items or EventSaveTimeoutSecs of inactivity, handing
// each flush to a worker pool bounded by errgroup.Group.SetLimit that does
// one Mongo.BulkWrite per batch instead of per-event inserts.
package events

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/entities"
)

var (
	emitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pica_gateway_events_emitted_total",
		Help: "Events handed to the event pipeline, by type.",
	}, []string{"type"})
	dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pica_gateway_events_dropped_total",
		Help: "Events dropped because the pipeline buffer was full.",
	}, []string{"type"})
	batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "pica_gateway_events_batch_size",
		Help: "Size of each bulk-written event batch, by flush trigger.",
	}, []string{"trigger"})
)

// Pipeline owns the event channel, the collector goroutine that buffers it,
// and the bounded pool of BulkWrite flush workers.
type Pipeline struct {
	coll         *mongo.Collection
	ch           chan entities.Event
	bufferSize   int
	idleTimeout  time.Duration
	flushWorkers int
}

// New builds a Pipeline writing to coll. bufferSize caps both the inbound
// channel and the flush-trigger buffer length; idleTimeout is the
// EventSaveTimeoutSecs inactivity window; flushWorkers bounds how many
// BulkWrite calls run concurrently.
func New(coll *mongo.Collection, bufferSize, flushWorkers int, idleTimeout time.Duration) *Pipeline {
	if flushWorkers <= 0 {
		flushWorkers = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Pipeline{
		coll:         coll,
		ch:           make(chan entities.Event, bufferSize),
		bufferSize:   bufferSize,
		idleTimeout:  idleTimeout,
		flushWorkers: flushWorkers,
	}
}

// Emit enqueues e for asynchronous persistence. Non-blocking: a full
// channel drops the event and logs a warning rather than stalling the
// caller, per spec.md §4.6.
func (p *Pipeline) Emit(e entities.Event) {
	emitted.WithLabelValues(string(e.Type)).Inc()
	select {
	case p.ch <- e:
	default:
		dropped.WithLabelValues(string(e.Type)).Inc()
		log.Warn().Str("type", string(e.Type)).Msg("event pipeline buffer full, dropping event")
	}
}

// Run collects events into a slice buffer, flushing it to a bounded pool of
// BulkWrite workers on buffer-full or idle timeout, until ctx is canceled
// or the channel is closed. Either way it flushes what is buffered and
// waits for the in-flight writes before returning; events still queued in
// the channel when ctx is canceled are not read.
func (p *Pipeline) Run(ctx context.Context) error {
	// The writes outlive ctx so the shutdown flush can still reach Mongo.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(p.flushWorkers)

	buf := make([]entities.Event, 0, p.bufferSize)
	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	flushBuf := func(trigger string) {
		if len(buf) == 0 {
			return
		}
		batch := buf
		buf = make([]entities.Event, 0, p.bufferSize)
		batchSize.WithLabelValues(trigger).Observe(float64(len(batch)))
		g.Go(func() error {
			p.bulkInsert(gctx, batch)
			return nil
		})
	}

	for {
		select {
		case <-ctx.Done():
			flushBuf("shutdown")
			return g.Wait()
		case e, ok := <-p.ch:
			if !ok {
				flushBuf("shutdown")
				return g.Wait()
			}
			buf = append(buf, e)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.idleTimeout)
			if len(buf) >= p.bufferSize {
				flushBuf("full")
			}
		case <-timer.C:
			flushBuf("idle")
			timer.Reset(p.idleTimeout)
		}
	}
}

// Close stops accepting new events; call after Run's ctx is canceled.
func (p *Pipeline) Close() { close(p.ch) }

// bulkInsert writes batch in a single BulkWrite call, one InsertOneModel per
// event, logging but not propagating failures — event loss must never
// surface to the original request.
func (p *Pipeline) bulkInsert(ctx context.Context, batch []entities.Event) {
	models := make([]mongo.WriteModel, len(batch))
	for i, e := range batch {
		models[i] = mongo.NewInsertOneModel().SetDocument(e)
	}
	if _, err := p.coll.BulkWrite(ctx, models); err != nil {
		log.Error().Err(err).Int("count", len(batch)).Msg("failed to bulk-persist events")
	}
}
