package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/store"
)

// ResultRepo implements store.ResultRepository with sqlx.
type ResultRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewResultRepo returns a new ResultRepo.
func NewResultRepo(db *sqlx.DB, clk clock.Clock) *ResultRepo {
	return &ResultRepo{db: db, clock: clk}
}

func (r *ResultRepo) Append(ctx context.Context, res *store.TournamentResult) error {
	res.CreatedAt = r.clock.Now().UTC()
	query := `INSERT INTO tournament_results (player, tournament_id, placement, prize, points, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		res.Player, res.TournamentID, res.Placement, res.Prize, res.Points, res.CreatedAt,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("appending tournament result: %w", err)
	}
	return nil
}

func (r *ResultRepo) ListByPlayer(ctx context.Context, player string, limit, offset int) ([]store.TournamentResult, error) {
	var results []store.TournamentResult
	err := r.db.SelectContext(ctx, &results,
		`SELECT * FROM tournament_results
		 WHERE player = $1 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, player, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tournament results: %w", err)
	}
	return results, nil
}
