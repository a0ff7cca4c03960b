package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arenaforge/bracketd/internal/clock"
)

// MilestoneRepo implements store.MilestoneRepository with sqlx.
type MilestoneRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewMilestoneRepo returns a new MilestoneRepo.
func NewMilestoneRepo(db *sqlx.DB, clk clock.Clock) *MilestoneRepo {
	return &MilestoneRepo{db: db, clock: clk}
}

// TryClaim wins the claim only when the insert actually lands, so a threshold
// pays out at most once per player no matter how often scores re-cross it.
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
	var thresholds []int64
	err := r.db.SelectContext(ctx, &thresholds,
		`SELECT threshold FROM milestone_claims WHERE player = $1 ORDER BY threshold ASC`, player)
	if err != nil {
		return nil, fmt.Errorf("listing milestone claims: %w", err)
	}
	return thresholds, nil
}
