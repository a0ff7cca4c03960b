package postgres_test

import (
	"context"
	"testing"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/store"
	"github.com/arenaforge/bracketd/internal/store/postgres"
)

func TestAchievementRepo_RecordOnce(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewAchievementRepo(db, clock.Real{})
	ctx := context.Background()

	u := &store.AchievementUnlock{
		Player:        "alice",
		AchievementID: "first-blood",
		Authority:     "game",
		Points:        25,
	}
	first, err := repo.Record(ctx, u)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !first {
		t.Fatal("first Record() = false, want true")
	}
	if u.ID == "" {
		t.Fatal("expected ID to be set after Record")
	}

	again, err := repo.Record(ctx, &store.AchievementUnlock{
		Player:        "alice",
		AchievementID: "first-blood",
		Authority:     "game",
		Points:        25,
	})
	if err != nil {
		t.Fatalf("Record (repeat): %v", err)
	}
	if again {
		t.Error("repeated Record() = true, want false")
	}

	unlocks, err := repo.ListByPlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByPlayer: %v", err)
	}
	if len(unlocks) != 1 {
		t.Errorf("len(unlocks) = %d, want 1", len(unlocks))
	}
}

func TestAchievementRepo_AuthorityScore(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewAchievementRepo(db, clock.Real{})
	ctx := context.Background()

	if got, err := repo.AuthorityScore(ctx, "alice", "game"); err != nil || got != 0 {
		t.Fatalf("AuthorityScore (empty) = %d, %v, want 0, nil", got, err)
	}

	if err := repo.AddAuthorityScore(ctx, "alice", "game", 25); err != nil {
		t.Fatalf("AddAuthorityScore: %v", err)
	}
	if err := repo.AddAuthorityScore(ctx, "alice", "game", 100); err != nil {
		t.Fatalf("AddAuthorityScore: %v", err)
	}
	if err := repo.AddAuthorityScore(ctx, "alice", "other-game", 5); err != nil {
		t.Fatalf("AddAuthorityScore: %v", err)
	}

	got, err := repo.AuthorityScore(ctx, "alice", "game")
	if err != nil {
		t.Fatalf("AuthorityScore: %v", err)
	}
	if got != 125 {
		t.Errorf("AuthorityScore = %d, want 125", got)
	}
}
