package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	TournamentCreated       Type = "tournament.created"
	TournamentRegistered    Type = "tournament.registered"
	TournamentSeedRequested Type = "tournament.seed_requested"
	TournamentBracketSeeded Type = "tournament.bracket_seeded"
	TournamentCancelled     Type = "tournament.cancelled"
	TournamentCompleted     Type = "tournament.completed"
	TournamentSettled       Type = "tournament.settled"
	TournamentFinalized     Type = "tournament.finalized"

	MatchReported  Type = "match.reported"
	MatchDisputed  Type = "match.disputed"
	MatchResolved  Type = "match.resolved"
	MatchConfirmed Type = "match.confirmed"

	RefundClaimed Type = "tournament.refund_claimed"
	PrizeClaimed  Type = "tournament.prize_claimed"

	ResultRecorded      Type = "passport.result_recorded"
	AchievementUnlocked Type = "passport.achievement_unlocked"

	RewardMinted  Type = "reward.minted"
	MilestonePaid Type = "reward.milestone_paid"
)

// Event represents a single domain event in the append-only settlement history.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// TournamentCreatedData is the payload for TournamentCreated events.
type TournamentCreatedData struct {
	Name                 string        `json:"name"`
	Description          string        `json:"description"`
	Organizer            string        `json:"organizer"`
	ResultAuthority      string        `json:"result_authority"`
	EntryFee             int64         `json:"entry_fee"`
	MaxPlayers           int           `json:"max_players"`
	PrizeSplitBps        []int64       `json:"prize_split_bps"`
	ProtocolFeeBps       int64         `json:"protocol_fee_bps"`
	RegistrationDeadline time.Time     `json:"registration_deadline"`
	DisputeWindow        time.Duration `json:"dispute_window"`
}

// RegisteredData is the payload for TournamentRegistered events.
type RegisteredData struct {
	Player string `json:"player"`
	Fee    int64  `json:"fee"`
	// Filled is true when this registration filled the bracket and moved
	// the tournament to the active state.
	Filled bool `json:"filled"`
}

// SeedRequestedData is the payload for TournamentSeedRequested events.
type SeedRequestedData struct {
	RequestID string `json:"request_id"`
}

// BracketSeededData is the payload for TournamentBracketSeeded events.
type BracketSeededData struct {
	Slots         []string `json:"slots"`
	Deterministic bool     `json:"deterministic"`
}

// MatchReportedData is the payload for MatchReported events.
type MatchReportedData struct {
	MatchID    int       `json:"match_id"`
	Winner     string    `json:"winner"`
	ReportedBy string    `json:"reported_by"`
	ReportedAt time.Time `json:"reported_at"`
}

// MatchDisputedData is the payload for MatchDisputed events.
type MatchDisputedData struct {
	MatchID    int    `json:"match_id"`
	DisputedBy string `json:"disputed_by"`
}

// MatchResolvedData is the payload for MatchResolved events.
type MatchResolvedData struct {
	MatchID int    `json:"match_id"`
	Winner  string `json:"winner"`
}

// MatchConfirmedData is the payload for MatchConfirmed events.
type MatchConfirmedData struct {
	MatchID int `json:"match_id"`
}

// CompletedData is the payload for TournamentCompleted events.
type CompletedData struct {
	Placements  map[string]int   `json:"placements"`
	Payouts     map[string]int64 `json:"payouts"`
	ProtocolFee int64            `json:"protocol_fee"`
}

// ClaimData is the payload for RefundClaimed and PrizeClaimed events.
type ClaimData struct {
	Player string `json:"player"`
	Amount int64  `json:"amount"`
}

// ResultRecordedData is the payload for ResultRecorded events.
type ResultRecordedData struct {
	Player       string `json:"player"`
	TournamentID string `json:"tournament_id"`
	Placement    int    `json:"placement"`
	Prize        int64  `json:"prize"`
	Points       int64  `json:"points"`
}

// AchievementUnlockedData is the payload for AchievementUnlocked events.
type AchievementUnlockedData struct {
	Player        string `json:"player"`
	AchievementID string `json:"achievement_id"`
	Authority     string `json:"authority"`
	Points        int64  `json:"points"`
}

// RewardMintedData is the payload for RewardMinted events.
type RewardMintedData struct {
	Player string `json:"player"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// MilestonePaidData is the payload for MilestonePaid events.
type MilestonePaidData struct {
	Player    string `json:"player"`
	Threshold int64  `json:"threshold"`
	Amount    int64  `json:"amount"`
}
