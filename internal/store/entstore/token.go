package entstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenaforge/bracketd/internal/clock"
)

// TokenRepo implements store.TokenRepository using database/sql.
type TokenRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewTokenRepo returns a new TokenRepo.
func NewTokenRepo(db *sql.DB, clk clock.Clock) *TokenRepo {
	return &TokenRepo{db: db, clock: clk}
}

func (r *TokenRepo) Mint(ctx context.Context, player string, amount int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO token_balances (player, balance, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player) DO UPDATE SET
		   balance = token_balances.balance + EXCLUDED.balance,
		   updated_at = EXCLUDED.updated_at`,
		player, amount, r.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("minting tokens: %w", err)
	}
	return nil
}

func (r *TokenRepo) Balance(ctx context.Context, player string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM token_balances WHERE player = $1`, player,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting token balance: %w", err)
	}
	return balance, nil
}
