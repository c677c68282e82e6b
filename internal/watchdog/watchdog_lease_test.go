package watchdog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/store"
)

// newMongoContainer starts a disposable MongoDB container, the same shape
// internal/store's db_integration_test.go uses. Skipped in short mode.
func newMongoContainer(ctx context.Context, t *testing.T) *store.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo testcontainer in short mode")
	}

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	url := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	db, err := store.Open(ctx, url, "pica_gateway_watchdog_test")
	if err != nil {
		t.Fatalf("failed to connect to mongo container: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	return db
}

func newLeasableTask(due bool) entities.Task {
	scheduledAt := time.Now().UTC().Add(-time.Minute).UnixMilli()
	if !due {
		scheduledAt = time.Now().UTC().Add(time.Hour).UnixMilli()
	}
	return entities.Task{
		Id:             entities.Now(entities.IdPrefixTask),
		Active:         true,
		WorkerId:       0,
		Status:         entities.TaskStatusPending,
		Method:         "POST",
		Url:            "http://example.invalid/webhook",
		ScheduledAt:    scheduledAt,
		Ownership:      entities.Ownership{Id: "buildable-1"},
		RecordMetadata: entities.NewRecordMetadata(),
	}
}

// TestLeaseBatch_BulkLeasesDueTasksAndSkipsOthers exercises spec.md §3's
// lease invariant: a due, unleased, active task is selected and atomically
// flipped to workerId=1/active=false in one bulk query/update pair, while a
// not-yet-due task is left untouched.
func TestLeaseBatch_BulkLeasesDueTasksAndSkipsOthers(t *testing.T) {
	ctx := context.Background()
	db := newMongoContainer(ctx, t)
	taskStore := store.NewCRUDStore[entities.Task](db, "tasks_lease_it")

	due := newLeasableTask(true)
	notYetDue := newLeasableTask(false)
	for _, task := range []entities.Task{due, notYetDue} {
		if err := taskStore.Insert(ctx, task); err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	w := New(Config{MaxTasksPerBatch: 50, HTTPClientTimeout: 5 * time.Second}, taskStore, nil)

	leased, err := w.leaseBatch(ctx)
	if err != nil {
		t.Fatalf("unexpected leaseBatch error: %v", err)
	}
	if len(leased) != 1 || leased[0].Id != due.Id {
		t.Fatalf("want exactly the due task leased, got %v", leased)
	}
	if leased[0].WorkerId != 1 || leased[0].Active {
		t.Fatalf("want returned task leased (workerId=1, active=false), got %+v", leased[0])
	}

	var persisted entities.Task
	if err := taskStore.Collection().FindOne(ctx, bson.M{"_id": string(due.Id)}).Decode(&persisted); err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if persisted.WorkerId != 1 || persisted.Active {
		t.Fatalf("want persisted due task leased, got %+v", persisted)
	}

	var untouched entities.Task
	if err := taskStore.Collection().FindOne(ctx, bson.M{"_id": string(notYetDue.Id)}).Decode(&untouched); err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if untouched.WorkerId != 0 || !untouched.Active {
		t.Fatalf("want not-yet-due task left unleased, got %+v", untouched)
	}

	again, err := w.leaseBatch(ctx)
	if err != nil {
		t.Fatalf("unexpected leaseBatch error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("want no tasks leased on a second pass, got %v", again)
	}
}
