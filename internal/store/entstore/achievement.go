package entstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/store"
)

// AchievementRepo implements store.AchievementRepository using database/sql.
type AchievementRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewAchievementRepo returns a new AchievementRepo.
func NewAchievementRepo(db *sql.DB, clk clock.Clock) *AchievementRepo {
	return &AchievementRepo{db: db, clock: clk}
}

func (r *AchievementRepo) Record(ctx context.Context, u *store.AchievementUnlock) (bool, error) {
	u.CreatedAt = r.clock.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO achievement_unlocks (player, achievement_id, authority, points, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (player, achievement_id) DO NOTHING
		 RETURNING id`,
		u.Player, u.AchievementID, u.Authority, u.Points, u.CreatedAt,
	).Scan(&u.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recording achievement unlock: %w", err)
	}
	return true, nil
}

func (r *AchievementRepo) ListByPlayer(ctx context.Context, player string) ([]store.AchievementUnlock, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player, achievement_id, authority, points, created_at
		 FROM achievement_unlocks WHERE player = $1 ORDER BY created_at ASC`, player)
	if err != nil {
		return nil, fmt.Errorf("listing achievement unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []store.AchievementUnlock
	for rows.Next() {
		var u store.AchievementUnlock
		if err := rows.Scan(&u.ID, &u.Player, &u.AchievementID, &u.Authority, &u.Points, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning unlock row: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

func (r *AchievementRepo) AddAuthorityScore(ctx context.Context, player, authority string, points int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authority_scores (player, authority, score)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player, authority) DO UPDATE SET score = authority_scores.score + EXCLUDED.score`,
		player, authority, points,
	)
	if err != nil {
		return fmt.Errorf("adding authority score: %w", err)
	}
	return nil
}

func (r *AchievementRepo) AuthorityScore(ctx context.Context, player, authority string) (int64, error) {
	var score int64
	err := r.db.QueryRowContext(ctx,
		`SELECT score FROM authority_scores WHERE player = $1 AND authority = $2`,
		player, authority,
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting authority score: %w", err)
	}
	return score, nil
}
