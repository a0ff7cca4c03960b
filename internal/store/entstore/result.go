package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/store"
)

// ResultRepo implements store.ResultRepository using database/sql.
type ResultRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewResultRepo returns a new ResultRepo.
func NewResultRepo(db *sql.DB, clk clock.Clock) *ResultRepo {
	return &ResultRepo{db: db, clock: clk}
}

func (r *ResultRepo) Append(ctx context.Context, res *store.TournamentResult) error {
	res.CreatedAt = r.clock.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tournament_results (player, tournament_id, placement, prize, points, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		res.Player, res.TournamentID, res.Placement, res.Prize, res.Points, res.CreatedAt,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("appending tournament result: %w", err)
	}
	return nil
}

func (r *ResultRepo) ListByPlayer(ctx context.Context, player string, limit, offset int) ([]store.TournamentResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player, tournament_id, placement, prize, points, created_at
		 FROM tournament_results
		 WHERE player = $1 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, player, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tournament results: %w", err)
	}
	defer rows.Close()

	var results []store.TournamentResult
	for rows.Next() {
		var res store.TournamentResult
		if err := rows.Scan(&res.ID, &res.Player, &res.TournamentID, &res.Placement, &res.Prize, &res.Points, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
