package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arenaforge/bracketd/internal/clock"
)

// MilestoneRepo implements store.MilestoneRepository using database/sql.
type MilestoneRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewMilestoneRepo returns a new MilestoneRepo.
func NewMilestoneRepo(db *sql.DB, clk clock.Clock) *MilestoneRepo {
	return &MilestoneRepo{db: db, clock: clk}
}

func (r *MilestoneRepo) TryClaim(ctx context.Context, player string, threshold int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO milestone_claims (player, threshold, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player, threshold) DO NOTHING`,
		player, threshold, r.clock.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("claiming milestone: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking milestone claim: %w", err)
	}
	return n == 1, nil
}

func (r *MilestoneRepo) Claimed(ctx context.Context, player string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT threshold FROM milestone_claims WHERE player = $1 ORDER BY threshold ASC`, player)
	if err != nil {
		return nil, fmt.Errorf("listing milestone claims: %w", err)
	}
	defer rows.Close()

	var thresholds []int64
	for rows.Next() {
		var threshold int64
		if err := rows.Scan(&threshold); err != nil {
			return nil, fmt.Errorf("scanning milestone row: %w", err)
		}
		thresholds = append(thresholds, threshold)
	}
	return thresholds, rows.Err()
}
