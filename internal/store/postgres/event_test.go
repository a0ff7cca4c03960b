package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/arenaforge/bracketd/internal/event"
	"github.com/arenaforge/bracketd/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "tournament-1", Type: event.TournamentCreated, Data: json.RawMessage(`{"name":"cup"}`), Version: 1},
		{AggregateID: "tournament-1", Type: event.TournamentRegistered, Data: json.RawMessage(`{"player":"p1"}`), Version: 2},
		{AggregateID: "tournament-2", Type: event.TournamentCreated, Data: json.RawMessage(`{"name":"other"}`), Version: 1},
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, "tournament-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len(Load()) = %d, want 2", len(loaded))
	}
	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("events not ordered by version: %+v", loaded)
	}

	byType, err := es.LoadByType(ctx, event.TournamentCreated)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("len(LoadByType()) = %d, want 2", len(byType))
	}
}

func TestEventStore_DuplicateVersionRejected(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	e := event.Event{AggregateID: "tournament-1", Type: event.TournamentCreated, Data: json.RawMessage(`{}`), Version: 1}
	if err := es.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := es.Append(ctx, e); err == nil {
		t.Fatal("appending a duplicate (aggregate, version) pair succeeded, want error")
	}
}
