package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

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
	db, err := store.Open(ctx, url, "pica_gateway_events_test")
	if err != nil {
		t.Fatalf("failed to connect to mongo container: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	return db
}

func newTestEvent() entities.Event {
	conn := entities.Connection{
		Id:        entities.Now(entities.IdPrefixConnection),
		Key:       "test::stripe::default::uid1",
		Platform:  "stripe",
		Ownership: entities.Ownership{Id: "buildable-1"},
	}
	return entities.NewEvent(entities.EventTypePassthrough, conn, "GET", "/v1/charges", 200, 42)
}

// TestPipeline_FlushesOnFullBufferAndIdleTimeout exercises spec.md §8
// scenario 6: EventSaveBufferSize events flush as one bulk insert as soon
// as the buffer fills, and a trailing partial batch flushes after
// EventSaveTimeoutSecs of inactivity.
func TestPipeline_FlushesOnFullBufferAndIdleTimeout(t *testing.T) {
	ctx := context.Background()
	db := newMongoContainer(ctx, t)
	coll := db.Database.Collection("events_pipeline_it")

	const bufferSize = 5
	p := New(coll, bufferSize, 2, 200*time.Millisecond)

	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() { defer close(runDone); _ = p.Run(runCtx) }()

	for i := 0; i < bufferSize; i++ {
		p.Emit(newTestEvent())
	}

	waitForCount(t, ctx, coll, bufferSize, 2*time.Second)

	p.Emit(newTestEvent())
	waitForCount(t, ctx, coll, bufferSize+1, 2*time.Second)

	cancel()
	p.Close()
	<-runDone
}

func waitForCount(t *testing.T, ctx context.Context, coll *mongo.Collection, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		n, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			t.Fatalf("count documents: %v", err)
		}
		if int(n) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d documents, have %d", want, n)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
