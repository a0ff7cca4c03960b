package entstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/store"
)

// ProfileRepo implements store.ProfileRepository using database/sql.
type ProfileRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewProfileRepo returns a new ProfileRepo.
func NewProfileRepo(db *sql.DB, clk clock.Clock) *ProfileRepo {
	return &ProfileRepo{db: db, clock: clk}
}

const profileColumns = `player, score, tournaments, wins, top_threes, prize_earned,
	 current_win_streak, longest_win_streak, tokens_earned, created_at, updated_at`

func scanProfile(row *sql.Row) (*store.Profile, error) {
	p := &store.Profile{}
	err := row.Scan(&p.Player, &p.Score, &p.Tournaments, &p.Wins, &p.TopThrees, &p.PrizeEarned,
		&p.CurrentWinStreak, &p.LongestWinStreak, &p.TokensEarned, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProfileRepo) Get(ctx context.Context, player string) (*store.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE player = $1`, player))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) Save(ctx context.Context, p *store.Profile) error {
	now := r.clock.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (player) DO UPDATE SET
		   score = EXCLUDED.score,
		   tournaments = EXCLUDED.tournaments,
		   wins = EXCLUDED.wins,
		   top_threes = EXCLUDED.top_threes,
		   prize_earned = EXCLUDED.prize_earned,
		   current_win_streak = EXCLUDED.current_win_streak,
		   longest_win_streak = EXCLUDED.longest_win_streak,
		   tokens_earned = EXCLUDED.tokens_earned,
		   updated_at = EXCLUDED.updated_at`,
		p.Player, p.Score, p.Tournaments, p.Wins, p.TopThrees, p.PrizeEarned,
		p.CurrentWinStreak, p.LongestWinStreak, p.TokensEarned, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) List(ctx context.Context) ([]store.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY score DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []store.Profile
	for rows.Next() {
		var p store.Profile
		if err := rows.Scan(&p.Player, &p.Score, &p.Tournaments, &p.Wins, &p.TopThrees, &p.PrizeEarned,
			&p.CurrentWinStreak, &p.LongestWinStreak, &p.TokensEarned, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
