package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Profile is a player's durable passport record. Created lazily on the first
// result or achievement.
type Profile struct {
	Player           string    `db:"player"`
	Score            int64     `db:"score"`
	Tournaments      int64     `db:"tournaments"`
	Wins             int64     `db:"wins"`
	TopThrees        int64     `db:"top_threes"`
	PrizeEarned      int64     `db:"prize_earned"`
	CurrentWinStreak int       `db:"current_win_streak"`
	LongestWinStreak int       `db:"longest_win_streak"`
	TokensEarned     int64     `db:"tokens_earned"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// TournamentResult is one append-only history entry per player per tournament.
type TournamentResult struct {
	ID           string    `db:"id"`
	Player       string    `db:"player"`
	TournamentID string    `db:"tournament_id"`
	Placement    int       `db:"placement"`
	Prize        int64     `db:"prize"`
	Points       int64     `db:"points"`
	CreatedAt    time.Time `db:"created_at"`
}

// AchievementUnlock records a single achievement attestation.
type AchievementUnlock struct {
	ID            string    `db:"id"`
	Player        string    `db:"player"`
	AchievementID string    `db:"achievement_id"`
	Authority     string    `db:"authority"`
	Points        int64     `db:"points"`
	CreatedAt     time.Time `db:"created_at"`
}

// ProfileRepository defines passport profile persistence.
type ProfileRepository interface {
	// Get returns ErrNotFound when the player has no profile yet.
	Get(ctx context.Context, player string) (*Profile, error)
	// Save upserts the profile keyed by player.
	Save(ctx context.Context, p *Profile) error
	List(ctx context.Context) ([]Profile, error)
}

// ResultRepository defines the per-player tournament history.
type ResultRepository interface {
	Append(ctx context.Context, r *TournamentResult) error
	// ListByPlayer returns the newest entries first.
	ListByPlayer(ctx context.Context, player string, limit, offset int) ([]TournamentResult, error)
}

// AchievementRepository defines achievement unlock persistence.
type AchievementRepository interface {
	// Record inserts the unlock and reports whether it was the first time.
	// A repeated (player, achievement) pair returns false with no error.
	Record(ctx context.Context, u *AchievementUnlock) (bool, error)
	ListByPlayer(ctx context.Context, player string) ([]AchievementUnlock, error)
	AddAuthorityScore(ctx context.Context, player, authority string, points int64) error
	AuthorityScore(ctx context.Context, player, authority string) (int64, error)
}

// MilestoneRepository tracks which score thresholds a player already claimed.
type MilestoneRepository interface {
	// TryClaim marks the threshold claimed and reports whether this call won
	// the claim. A previously claimed threshold returns false with no error.
	TryClaim(ctx context.Context, player string, threshold int64) (bool, error)
	Claimed(ctx context.Context, player string) ([]int64, error)
}

// TokenRepository is the reward-token balance ledger.
type TokenRepository interface {
	Mint(ctx context.Context, player string, amount int64) error
	Balance(ctx context.Context, player string) (int64, error)
}
