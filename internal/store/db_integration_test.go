package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/picahq/pica-gateway/internal/entities"
)

// newMongoContainer starts a disposable MongoDB container for integration
// tests, the same testcontainers.GenericContainer shape the pack's other
// container helpers use, and returns a DB connected to it; the container
// and the connection are released through t.Cleanup. Skipped in short
// mode since it needs a working Docker daemon.
func newMongoContainer(ctx context.Context, t *testing.T) *DB {
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
	db, err := Open(ctx, url, "pica_gateway_test")
	if err != nil {
		t.Fatalf("failed to connect to mongo container: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	return db
}

func TestCRUDStore_InsertGetUpdateSoftDelete(t *testing.T) {
	ctx := context.Background()
	db := newMongoContainer(ctx, t)

	s := NewCRUDStore[entities.Connection](db, "connections_it")

	conn := entities.Connection{
		Id:             entities.Now(entities.IdPrefixConnection),
		Key:            "test::stripe::default::uid1",
		Platform:       "stripe",
		Ownership:      entities.Ownership{Id: "buildable-1"},
		RecordMetadata: entities.NewRecordMetadata(),
	}
	if err := s.Insert(ctx, conn); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	got, err := s.Get(ctx, conn.Id, "buildable-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got.Key != conn.Key {
		t.Fatalf("want key %q, got %q", conn.Key, got.Key)
	}

	updated, err := s.Update(ctx, conn.Id, "buildable-1", bson.M{"platform": "hubspot"})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Platform != "hubspot" {
		t.Fatalf("want platform hubspot after update, got %q", updated.Platform)
	}

	if err := s.SoftDelete(ctx, conn.Id, "buildable-1"); err != nil {
		t.Fatalf("unexpected soft-delete error: %v", err)
	}
	if _, err := s.Get(ctx, conn.Id, "buildable-1"); err == nil {
		t.Fatal("expected Get to fail to find a soft-deleted record")
	}
}

func TestCRUDStore_ListScopesToOwnership(t *testing.T) {
	ctx := context.Background()
	db := newMongoContainer(ctx, t)

	s := NewCRUDStore[entities.Connection](db, "connections_it_list")

	for i, ownership := range []string{"buildable-a", "buildable-a", "buildable-b"} {
		conn := entities.Connection{
			Id:             entities.Now(entities.IdPrefixConnection),
			Key:            fmt.Sprintf("test::stripe::default::uid%d", i),
			Ownership:      entities.Ownership{Id: ownership},
			RecordMetadata: entities.NewRecordMetadata(),
		}
		if err := s.Insert(ctx, conn); err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	items, err := s.List(ctx, "buildable-a", ListQuery{Limit: DefaultLimit})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 connections scoped to buildable-a, got %d", len(items))
	}
}
