package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/store"
	"github.com/arenaforge/bracketd/internal/store/postgres"
)

func TestProfileRepo_GetMissing(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewProfileRepo(db, clock.Real{})

	if _, err := repo.Get(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestProfileRepo_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewProfileRepo(db, clock.Real{})
	ctx := context.Background()

	p := &store.Profile{
		Player:           "alice",
		Score:            220,
		Tournaments:      1,
		Wins:             1,
		TopThrees:        1,
		PrizeEarned:      2400,
		CurrentWinStreak: 1,
		LongestWinStreak: 1,
		TokensEarned:     50_000_000_000,
	}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Score != 220 || got.Wins != 1 || got.TokensEarned != 50_000_000_000 {
		t.Errorf("Get() = %+v, want saved values", got)
	}

	// Upsert path: same player, updated fields.
	p.Score = 440
	p.CurrentWinStreak = 2
	p.LongestWinStreak = 2
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	got, err = repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Score != 440 || got.CurrentWinStreak != 2 {
		t.Errorf("Get() after update = %+v", got)
	}
}

func TestProfileRepo_List(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewProfileRepo(db, clock.Real{})
	ctx := context.Background()

	for _, p := range []*store.Profile{
		{Player: "alice", Score: 100},
		{Player: "bob", Score: 300},
	} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save(%s): %v", p.Player, err)
		}
	}

	profiles, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(profiles))
	}
	if profiles[0].Player != "bob" {
		t.Errorf("List() not ordered by score: first = %s, want bob", profiles[0].Player)
	}
}
