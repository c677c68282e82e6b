// Package watchdog runs the gateway's two background loops: a
// 1-second Redis event-throughput counter clear, and a scheduled
// api-throughput clear plus deferred-task lease/execute cycle, ported from
// original_source/watchdog/src/client.rs's WatchdogClient.run.
package watchdog

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/ratelimit"
	"github.com/picahq/pica-gateway/internal/store"
)

// awaitExecTimeout is the fixed upstream timeout for await=true tasks
// (spec.md §4.8/§5), independent of Config.HTTPClientTimeout.
const awaitExecTimeout = 300 * time.Second

// Config is the watchdog's own tunables, distinct from the gateway
// server's — named and shaped after original_source/watchdog/src/config.rs's
// WatchdogConfig.
type Config struct {
	RateLimiterRefreshInterval time.Duration
	MaxTasksPerBatch           int64
	HTTPClientTimeout          time.Duration
}

// Watchdog owns the task store, the rate limiter it clears, and an HTTP
// client for executing leased tasks.
type Watchdog struct {
	cfg        Config
	tasks      *store.CRUDStore[entities.Task]
	limiter    *ratelimit.Limiter
	httpClient *http.Client
}

// New builds a Watchdog.
func New(cfg Config, tasks *store.CRUDStore[entities.Task], limiter *ratelimit.Limiter) *Watchdog {
	return &Watchdog{
		cfg:        cfg,
		tasks:      tasks,
		limiter:    limiter,
		// No client-level Timeout: execute() sets a per-request context
		// timeout that varies with task.Await, and a fixed client Timeout
		// would otherwise clip await=true tasks back down to the default.
		httpClient: &http.Client{},
	}
}

// Run blocks until ctx is canceled, driving the event-throughput clear
// loop and the api-throughput-clear-plus-task-execution loop concurrently.
func (w *Watchdog) Run(ctx context.Context) error {
	log.Info().Msg("starting watchdog")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.runEventThroughputClear(ctx) })
	g.Go(func() error { return w.runScheduledLoop(ctx) })
	return g.Wait()
}

// runEventThroughputClear mirrors original_source's bare tokio::spawn loop:
// clear the event-throughput counters once a second, independent of the
// main schedule.
func (w *Watchdog) runEventThroughputClear(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.limiter.ClearEvents(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to clear event-throughput counters")
			}
		}
	}
}

// runScheduledLoop drives the api-throughput clear and task lease/execute
// cycle on cfg.RateLimiterRefreshInterval, using cron rather than a bare
// sleep loop so the interval is a readable schedule expression and the
// loop can be extended with additional scheduled entries later.
func (w *Watchdog) runScheduledLoop(ctx context.Context) error {
	secs := int(w.cfg.RateLimiterRefreshInterval.Seconds())
	if secs <= 0 {
		secs = 1
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(everyNSeconds(secs), func() {
		w.tick(ctx)
	})
	if err != nil {
		return err
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

func everyNSeconds(n int) string {
	return "@every " + time.Duration(n*int(time.Second)).String()
}

// tick runs one clear+lease+execute cycle. Errors are logged, never
// propagated, so one bad cycle never kills the loop.
func (w *Watchdog) tick(ctx context.Context) {
	if err := w.limiter.ClearAPI(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear api-throughput counters")
	}

	tasks, err := w.leaseBatch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to lease task batch")
		return
	}
	if len(tasks) == 0 {
		return
	}

	log.Info().Int("count", len(tasks)).Msg("executing leased task batch")

	g, execCtx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return w.execute(execCtx, task)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("task batch had failures")
	}
}

// leaseBatch atomically leases up to MaxTasksPerBatch due, unleased, active
// tasks: one Find selects the batch, then a single UpdateMany flips
// workerId 0->1 and active true->false across every selected _id, so two
// watchdog instances racing on the same collection never double-execute a
// task and a leased-but-not-yet-executed task never reappears in the next
// tick's filter (spec.md §3's lease invariant).
func (w *Watchdog) leaseBatch(ctx context.Context) ([]entities.Task, error) {
	coll := w.tasks.Collection()
	now := time.Now().UTC().UnixMilli()

	filter := bson.M{
		"active":      true,
		"workerId":    0,
		"scheduledAt": bson.M{"$lte": now},
	}

	cur, err := coll.Find(ctx, filter, options.Find().SetLimit(w.cfg.MaxTasksPerBatch))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tasks []entities.Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	ids := make([]entities.Id, len(tasks))
	for i, task := range tasks {
		ids[i] = task.Id
		tasks[i].WorkerId = 1
		tasks[i].Active = false
	}

	if _, err := coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{
		"$set": bson.M{"workerId": 1, "active": false},
	}); err != nil {
		return nil, err
	}

	return tasks, nil
}

// execute sends task.Body to task.Url with task.Method, streams the
// response into the task's log trail, and writes back {status, endedAt,
// active, logTrail}, matching
// original_source/watchdog/src/client.rs's execute().
func (w *Watchdog) execute(ctx context.Context, task entities.Task) error {
	timeout := w.cfg.HTTPClientTimeout
	if task.Await {
		timeout = awaitExecTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if task.Body != nil {
		body = bytes.NewReader([]byte(*task.Body))
	}

	req, err := http.NewRequestWithContext(execCtx, task.Method, task.Url, body)
	if err != nil {
		return w.writeBack(ctx, task.Id, entities.TaskStatusFailed, []string{err.Error()})
	}
	for k, v := range task.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return w.writeBack(ctx, task.Id, entities.TaskStatusFailed, []string{err.Error()})
	}
	defer resp.Body.Close()

	logTrail, readErr := streamIntoLogTrail(resp.Body)
	status := entities.TaskStatusSuccess
	if resp.StatusCode >= 400 || readErr != nil {
		status = entities.TaskStatusFailed
	}

	return w.writeBack(ctx, task.Id, status, logTrail)
}

// streamIntoLogTrail reads the upstream response body in chunks and
// records one log-trail line per chunk, rather than buffering the whole
// body, mirroring the original's bytes_stream() loop.
func streamIntoLogTrail(r io.Reader) ([]string, error) {
	var trail []string
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			trail = append(trail, string(buf[:n]))
		}
		if err == io.EOF {
			return trail, nil
		}
		if err != nil {
			return trail, err
		}
	}
}

func (w *Watchdog) writeBack(ctx context.Context, id entities.Id, status entities.TaskStatus, logTrail []string) error {
	now := time.Now().UTC().UnixMilli()
	_, err := w.tasks.Collection().UpdateByID(ctx, string(id), bson.M{
		"$set": bson.M{
			"status":   status,
			"endedAt":  now,
			"active":   false,
			"logTrail": logTrail,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("task_id", id.String()).Msg("failed to write back task result")
		return err
	}
	return nil
}
