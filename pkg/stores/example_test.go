package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/stores"
)

// ExampleOpen demonstrates opening a migrated store.
func ExampleOpen() {
	store, err := stores.Open(context.Background(), stores.Config{Path: stores.MemoryPath})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	version, _, _ := store.Version()
	fmt.Println("schema version", version)
	// Output: schema version 1
}

// ExampleSQLiteStore_CreateResource demonstrates the resource bookkeeping a
// create pipeline performs.
func ExampleSQLiteStore_CreateResource() {
	ctx := context.Background()
	store, _ := stores.Open(ctx, stores.Config{Path: stores.MemoryPath})
	defer store.Close()

	res := &engine.Resource{Kind: "network", Name: "net1", ContainerID: "10"}
	if err := store.CreateResource(ctx, res); err != nil {
		log.Fatal(err)
	}
	_ = store.AddTag(ctx, res.ID, "prod")

	res.ExtID = "ext-123"
	res.Active = true
	res.State = engine.ResourceStateActive
	res.UpdatedAt = time.Now()
	_ = store.UpdateResource(ctx, res)

	got, _ := store.GetResourceByExtID(ctx, "ext-123")
	fmt.Println(got.Name, got.State, got.Active, got.Tags)
	// Output: net1 ACTIVE true [prod]
}

// ExampleSQLiteStore_ListEvents demonstrates reading a job's progress trail.
func ExampleSQLiteStore_ListEvents() {
	ctx := context.Background()
	store, _ := stores.Open(ctx, stores.Config{Path: stores.MemoryPath})
	defer store.Close()

	_ = store.CreateJob(ctx, &engine.Job{
		ID:        "job-1",
		Name:      "network.insert",
		Operation: engine.OperationInsert,
		Status:    engine.JobStatusRunning,
		CreatedAt: time.Now(),
	})
	for _, msg := range []string{"job network.insert started", "network net1 created"} {
		_ = store.AppendEvent(ctx, &engine.JobEvent{
			JobID:     "job-1",
			Status:    "PROGRESS",
			Level:     engine.EventLevelInfo,
			Message:   msg,
			Timestamp: time.Now(),
		})
	}

	events, _ := store.ListEvents(ctx, "job-1")
	for _, e := range events {
		fmt.Println(e.ID, e.Message)
	}
	// Output:
	// 1 job network.insert started
	// 2 network net1 created
}
