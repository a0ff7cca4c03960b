// Package passport is the per-player durable ledger: composite score, streaks,
// placement history, and achievement unlocks. It consumes settlement results
// from the tournament registry and drives token emission through the reward
// engine, but owns only reputation state itself.
package passport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenaforge/bracketd/internal/authz"
	"github.com/arenaforge/bracketd/internal/event"
	"github.com/arenaforge/bracketd/internal/scoring"
	"github.com/arenaforge/bracketd/internal/store"
	"github.com/arenaforge/bracketd/internal/tournament"
)

// Identity is the caller identity the passport uses against the reward engine.
const Identity = "player-passport"

var (
	ErrUnknownAchievement        = errors.New("achievement is not registered")
	ErrAchievementAlreadyUnlocked = errors.New("achievement already unlocked for this player")
	ErrInvalidAchievement        = errors.New("achievement needs an id and a positive point value")
)

// AchievementDef is an admin-registered achievement: a fixed passport point
// value plus the rarity that keys its token reward.
type AchievementDef struct {
	ID     string
	Rarity string
	Points int64
}

// Distributor mints reward tokens. Implemented by the reward engine. Each
// call returns the amount minted so the passport can track cumulative
// earnings on the profile.
type Distributor interface {
	DistributeTournamentReward(ctx context.Context, caller, player string, placement int, entryFee int64, streak int) (int64, error)
	DistributeAchievementReward(ctx context.Context, caller, player, rarity string) (int64, error)
	DistributeMilestones(ctx context.Context, caller, player string, score int64) (int64, error)
}

// Manager owns player profiles and history. All profile mutations are
// serialized through its mutex to keep read-modify-write cycles atomic.
type Manager struct {
	mu sync.Mutex

	profiles     store.ProfileRepository
	results      store.ResultRepository
	achievements store.AchievementRepository
	rewards      Distributor
	events       event.Store
	logger       *slog.Logger
	tracer       trace.Tracer

	table      scoring.Table
	authorized map[string]struct{}
	admin      string
	defs       map[string]AchievementDef
	versions   map[string]int
}

// aggregateID names the passport's event stream for one player. The reward
// engine writes its own stream, so the two never contend on a version.
func aggregateID(player string) string {
	return "passport-" + player
}

// NewManager returns a passport Manager. The authorized identities are the
// callers allowed to submit results and attestations; grants are fixed at
// construction.
func NewManager(
	profiles store.ProfileRepository,
	results store.ResultRepository,
	achievements store.AchievementRepository,
	rewards Distributor,
	events event.Store,
	logger *slog.Logger,
	tp trace.TracerProvider,
	admin string,
	authorized ...string,
) *Manager {
	auth := make(map[string]struct{}, len(authorized))
	for _, id := range authorized {
		auth[id] = struct{}{}
	}
	return &Manager{
		profiles:     profiles,
		results:      results,
		achievements: achievements,
		rewards:      rewards,
		events:       events,
		logger:       logger,
		tracer:       tp.Tracer("github.com/arenaforge/bracketd/internal/passport"),
		table:        scoring.PassportTable(),
		authorized:   auth,
		admin:        admin,
		defs:         make(map[string]AchievementDef),
		versions:     make(map[string]int),
	}
}

func (m *Manager) grants() authz.Grants {
	return authz.Grants{Admin: m.admin, Authorized: m.authorized}
}

// RecordTournamentResult applies one settlement result to the player's
// profile: streak bookkeeping first, then tier-multiplied placement points,
// then token emission and milestone payouts. Implements tournament.ResultSink.
func (m *Manager) RecordTournamentResult(ctx context.Context, caller string, res tournament.Result) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RecordTournamentResult",
		trace.WithAttributes(
			attribute.String("player", res.Player),
			attribute.String("tournament_id", res.TournamentID),
			attribute.Int("placement", res.Placement),
		),
	)
	defer span.End()

	if err := authz.Check(authz.OpRecordResult, caller, m.grants()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profile, err := m.loadOrCreate(ctx, res.Player)
	if err != nil {
		return err
	}

	// Streak updates before scoring: the bonus keys off the streak this win
	// just produced.
	if res.Placement == 1 {
		profile.CurrentWinStreak++
		profile.Wins++
	} else {
		profile.CurrentWinStreak = 0
	}
	if profile.CurrentWinStreak > profile.LongestWinStreak {
		profile.LongestWinStreak = profile.CurrentWinStreak
	}

	points := m.table.Award(res.Placement, res.EntryFee, profile.CurrentWinStreak)
	profile.Score += points
	profile.Tournaments++
	if res.Placement >= 1 && res.Placement <= 3 {
		profile.TopThrees++
	}
	profile.PrizeEarned += res.Prize

	profile.TokensEarned += m.mint(ctx, res.Player, func(ctx context.Context) (int64, error) {
		return m.rewards.DistributeTournamentReward(ctx, Identity, res.Player, res.Placement, res.EntryFee, profile.CurrentWinStreak)
	})
	profile.TokensEarned += m.mint(ctx, res.Player, func(ctx context.Context) (int64, error) {
		return m.rewards.DistributeMilestones(ctx, Identity, res.Player, profile.Score)
	})

	if err := m.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	if err := m.results.Append(ctx, &store.TournamentResult{
		Player:       res.Player,
		TournamentID: res.TournamentID,
		Placement:    res.Placement,
		Prize:        res.Prize,
		Points:       points,
	}); err != nil {
		return fmt.Errorf("appending result history: %w", err)
	}

	data, _ := json.Marshal(event.ResultRecordedData{
		Player:       res.Player,
		TournamentID: res.TournamentID,
		Placement:    res.Placement,
		Prize:        res.Prize,
		Points:       points,
	})
	m.append(ctx, event.Event{AggregateID: aggregateID(res.Player), Type: event.ResultRecorded, Data: data})

	m.logger.InfoContext(ctx, "tournament result recorded",
		slog.String("player", res.Player),
		slog.String("tournament_id", res.TournamentID),
		slog.Int("placement", res.Placement),
		slog.Int64("points", points),
		slog.Int64("score", profile.Score),
		slog.Int("streak", profile.CurrentWinStreak),
	)
	return nil
}

// RegisterAchievement adds an achievement definition. Admin only.
func (m *Manager) RegisterAchievement(ctx context.Context, caller string, def AchievementDef) error {
	_, span := m.tracer.Start(ctx, "Manager.RegisterAchievement",
		trace.WithAttributes(attribute.String("achievement_id", def.ID)),
	)
	defer span.End()

	if err := authz.Check(authz.OpRegisterAchievement, caller, m.grants()); err != nil {
		return err
	}
	if def.ID == "" || def.Points <= 0 {
		return ErrInvalidAchievement
	}

	m.mu.Lock()
	m.defs[def.ID] = def
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "achievement registered",
		slog.String("achievement_id", def.ID),
		slog.String("rarity", def.Rarity),
		slog.Int64("points", def.Points),
	)
	return nil
}

// AttestAchievement unlocks an achievement for a player, at most once per
// (player, achievement) pair. The attesting authority's sub-score grows by
// the same points.
func (m *Manager) AttestAchievement(ctx context.Context, caller, player, achievementID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AttestAchievement",
		trace.WithAttributes(
			attribute.String("player", player),
			attribute.String("achievement_id", achievementID),
		),
	)
	defer span.End()

	if err := authz.Check(authz.OpAttestAchievement, caller, m.grants()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := m.defs[achievementID]
	if !ok {
		return ErrUnknownAchievement
	}

	first, err := m.achievements.Record(ctx, &store.AchievementUnlock{
		Player:        player,
		AchievementID: achievementID,
		Authority:     caller,
		Points:        def.Points,
	})
	if err != nil {
		return fmt.Errorf("recording unlock: %w", err)
	}
	if !first {
		return ErrAchievementAlreadyUnlocked
	}

	profile, err := m.loadOrCreate(ctx, player)
	if err != nil {
		return err
	}
	profile.Score += def.Points

	if err := m.achievements.AddAuthorityScore(ctx, player, caller, def.Points); err != nil {
		return fmt.Errorf("adding authority score: %w", err)
	}

	profile.TokensEarned += m.mint(ctx, player, func(ctx context.Context) (int64, error) {
		return m.rewards.DistributeAchievementReward(ctx, Identity, player, def.Rarity)
	})
	profile.TokensEarned += m.mint(ctx, player, func(ctx context.Context) (int64, error) {
		return m.rewards.DistributeMilestones(ctx, Identity, player, profile.Score)
	})

	if err := m.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	data, _ := json.Marshal(event.AchievementUnlockedData{
		Player:        player,
		AchievementID: achievementID,
		Authority:     caller,
		Points:        def.Points,
	})
	m.append(ctx, event.Event{AggregateID: aggregateID(player), Type: event.AchievementUnlocked, Data: data})

	m.logger.InfoContext(ctx, "achievement unlocked",
		slog.String("player", player),
		slog.String("achievement_id", achievementID),
		slog.String("authority", caller),
		slog.Int64("points", def.Points),
	)
	return nil
}

// Profile returns the player's profile, or store.ErrNotFound before any
// result or achievement created it.
func (m *Manager) Profile(ctx context.Context, player string) (*store.Profile, error) {
	return m.profiles.Get(ctx, player)
}

// History returns the player's tournament results, newest first.
func (m *Manager) History(ctx context.Context, player string, limit, offset int) ([]store.TournamentResult, error) {
	return m.results.ListByPlayer(ctx, player, limit, offset)
}

// Achievements returns the player's unlocks in attestation order.
func (m *Manager) Achievements(ctx context.Context, player string) ([]store.AchievementUnlock, error) {
	return m.achievements.ListByPlayer(ctx, player)
}

// AuthorityScore returns the points a single authority has attested for the
// player.
func (m *Manager) AuthorityScore(ctx context.Context, player, authority string) (int64, error) {
	return m.achievements.AuthorityScore(ctx, player, authority)
}

// Leaderboard returns all profiles ordered by score.
func (m *Manager) Leaderboard(ctx context.Context) ([]store.Profile, error) {
	return m.profiles.List(ctx)
}

func (m *Manager) loadOrCreate(ctx context.Context, player string) (*store.Profile, error) {
	profile, err := m.profiles.Get(ctx, player)
	if errors.Is(err, store.ErrNotFound) {
		return &store.Profile{Player: player}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return profile, nil
}

// mint runs one reward-engine call. Emission failures must not block the
// reputation update, so they are logged and the minted amount counts as zero.
func (m *Manager) mint(ctx context.Context, player string, fn func(ctx context.Context) (int64, error)) int64 {
	amount, err := fn(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "reward distribution failed",
			slog.String("player", player),
			slog.Any("error", err),
		)
		return 0
	}
	return amount
}

// append stamps the next version in the aggregate's sequence and persists the
// event. The stored history carries a unique (aggregate, version) constraint,
// so an unversioned append would collide after the first event. Callers hold
// m.mu.
func (m *Manager) append(ctx context.Context, e event.Event) {
	e.Version = m.nextVersion(ctx, e.AggregateID)
	if err := m.events.Append(ctx, e); err != nil {
		m.logger.ErrorContext(ctx, "failed to append passport event", slog.Any("error", err))
	}
}

// nextVersion continues the aggregate's stored sequence, seeding the counter
// from the persisted history on first use after a restart.
func (m *Manager) nextVersion(ctx context.Context, aggregateID string) int {
	v, seeded := m.versions[aggregateID]
	if !seeded {
		history, err := m.events.Load(ctx, aggregateID)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to load event history for versioning",
				slog.String("aggregate_id", aggregateID),
				slog.Any("error", err),
			)
		}
		for _, have := range history {
			if have.Version > v {
				v = have.Version
			}
		}
	}
	m.versions[aggregateID] = v + 1
	return v + 1
}
