// Package reward is the token-emission engine. It mirrors the passport's
// placement and streak arithmetic with its own base constants, pays fixed
// amounts per achievement rarity, and settles score milestones exactly once
// per player and threshold. The engine owns emission policy and milestone
// bookkeeping only; balances live in the token repository.
package reward

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
)

// TokenUnit is the number of base units in one whole reward token.
const TokenUnit int64 = 1_000_000_000

// Achievement rarity tiers.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityLegendary = "legendary"
)

var (
	ErrUnknownRarity           = errors.New("unknown achievement rarity")
	ErrMilestoneLengthMismatch = errors.New("milestone thresholds and rewards must have equal length")
	ErrMilestonesNotAscending  = errors.New("milestone thresholds must be positive and strictly ascending")
)

// Milestone pairs a composite-score threshold with its one-time payout.
type Milestone struct {
	Threshold int64
	Reward    int64
}

// DefaultMilestones is the boot-time milestone table. Admins can replace it
// at runtime.
func DefaultMilestones() []Milestone {
	return []Milestone{
		{Threshold: 1_000, Reward: 100 * TokenUnit},
		{Threshold: 5_000, Reward: 500 * TokenUnit},
		{Threshold: 10_000, Reward: 1_000 * TokenUnit},
	}
}

// Engine mints reward tokens. Distribution entry points are restricted to
// authorized callers; policy setters to the admin.
type Engine struct {
	mu sync.Mutex

	tokens     store.TokenRepository
	milestones store.MilestoneRepository
	events     event.Store
	logger     *slog.Logger
	tracer     trace.Tracer

	table      scoring.Table
	rarities   map[string]int64
	schedule   []Milestone
	admin      string
	authorized map[string]struct{}
	versions   map[string]int
}

// aggregateID names the engine's event stream for one player, separate from
// the passport's stream so the two version sequences never contend.
func aggregateID(player string) string {
	return "reward-" + player
}

// NewEngine returns an Engine with the default emission policy.
func NewEngine(
	tokens store.TokenRepository,
	milestones store.MilestoneRepository,
	events event.Store,
	logger *slog.Logger,
	tp trace.TracerProvider,
	admin string,
	authorized ...string,
) *Engine {
	auth := make(map[string]struct{}, len(authorized))
	for _, id := range authorized {
		auth[id] = struct{}{}
	}
	return &Engine{
		tokens:     tokens,
		milestones: milestones,
		events:     events,
		logger:     logger,
		tracer:     tp.Tracer("github.com/arenaforge/bracketd/internal/reward"),
		table:      scoring.RewardTable(TokenUnit),
		rarities: map[string]int64{
			RarityCommon:    5 * TokenUnit,
			RarityRare:      25 * TokenUnit,
			RarityLegendary: 100 * TokenUnit,
		},
		schedule:   DefaultMilestones(),
		admin:      admin,
		authorized: auth,
		versions:   make(map[string]int),
	}
}

func (e *Engine) grants() authz.Grants {
	return authz.Grants{Admin: e.admin, Authorized: e.authorized}
}

// DistributeTournamentReward mints the placement reward for one tournament
// result and returns the amount minted.
func (e *Engine) DistributeTournamentReward(ctx context.Context, caller, player string, placement int, entryFee int64, streak int) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.DistributeTournamentReward",
		trace.WithAttributes(
			attribute.String("player", player),
			attribute.Int("placement", placement),
		),
	)
	defer span.End()

	if err := authz.Check(authz.OpDistributeReward, caller, e.grants()); err != nil {
		return 0, err
	}

	e.mu.Lock()
	amount := e.table.Award(placement, entryFee, streak)
	e.mu.Unlock()

	if err := e.pay(ctx, player, amount, "tournament"); err != nil {
		return 0, err
	}
	return amount, nil
}

// DistributeAchievementReward mints the fixed amount for an achievement
// rarity and returns it.
func (e *Engine) DistributeAchievementReward(ctx context.Context, caller, player, rarity string) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.DistributeAchievementReward",
		trace.WithAttributes(
			attribute.String("player", player),
			attribute.String("rarity", rarity),
		),
	)
	defer span.End()

	if err := authz.Check(authz.OpDistributeReward, caller, e.grants()); err != nil {
		return 0, err
	}

	e.mu.Lock()
	amount, ok := e.rarities[rarity]
	e.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%q: %w", rarity, ErrUnknownRarity)
	}

	if err := e.pay(ctx, player, amount, "achievement"); err != nil {
		return 0, err
	}
	return amount, nil
}

// DistributeMilestones pays every milestone at or below score that the player
// has not yet claimed, cumulatively in one call. Crossing several thresholds
// at once pays them all; repeated calls with the same or a higher score pay
// nothing twice. Returns the total minted.
func (e *Engine) DistributeMilestones(ctx context.Context, caller, player string, score int64) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.DistributeMilestones",
		trace.WithAttributes(
			attribute.String("player", player),
			attribute.Int64("score", score),
		),
	)
	defer span.End()

	if err := authz.Check(authz.OpDistributeReward, caller, e.grants()); err != nil {
		return 0, err
	}

	e.mu.Lock()
	schedule := append([]Milestone(nil), e.schedule...)
	e.mu.Unlock()

	var total int64
	for _, ms := range schedule {
		if ms.Threshold > score {
			break
		}
		won, err := e.milestones.TryClaim(ctx, player, ms.Threshold)
		if err != nil {
			return total, fmt.Errorf("claiming milestone %d: %w", ms.Threshold, err)
		}
		if !won {
			continue
		}
		if err := e.tokens.Mint(ctx, player, ms.Reward); err != nil {
			return total, fmt.Errorf("minting milestone reward: %w", err)
		}
		total += ms.Reward

		data, _ := json.Marshal(event.MilestonePaidData{
			Player:    player,
			Threshold: ms.Threshold,
			Amount:    ms.Reward,
		})
		e.append(ctx, event.Event{AggregateID: aggregateID(player), Type: event.MilestonePaid, Data: data})

		e.logger.InfoContext(ctx, "milestone paid",
			slog.String("player", player),
			slog.Int64("threshold", ms.Threshold),
			slog.Int64("amount", ms.Reward),
		)
	}
	return total, nil
}

// SetRates replaces the placement emission table. Admin only.
func (e *Engine) SetRates(ctx context.Context, caller string, table scoring.Table) error {
	if err := authz.Check(authz.OpSetRewardPolicy, caller, e.grants()); err != nil {
		return err
	}

	e.mu.Lock()
	e.table = table
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "reward rates updated",
		slog.Int64("first_place", table.FirstPlace),
		slog.Int64("top_three", table.TopThree),
		slog.Int64("participation", table.Participation),
		slog.Int64("streak_step", table.StreakStep),
	)
	return nil
}

// SetMilestones replaces the milestone table. Thresholds and rewards must
// pair up one to one, and thresholds must be positive and strictly ascending.
// Admin only.
func (e *Engine) SetMilestones(ctx context.Context, caller string, thresholds, rewards []int64) error {
	if err := authz.Check(authz.OpSetRewardPolicy, caller, e.grants()); err != nil {
		return err
	}
	if len(thresholds) != len(rewards) {
		return ErrMilestoneLengthMismatch
	}
	var prev int64
	for _, th := range thresholds {
		if th <= prev {
			return ErrMilestonesNotAscending
		}
		prev = th
	}

	schedule := make([]Milestone, len(thresholds))
	for i := range thresholds {
		schedule[i] = Milestone{Threshold: thresholds[i], Reward: rewards[i]}
	}

	e.mu.Lock()
	e.schedule = schedule
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "milestone table updated", slog.Int("milestones", len(schedule)))
	return nil
}

// Milestones returns the current milestone table.
func (e *Engine) Milestones() []Milestone {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Milestone(nil), e.schedule...)
}

// Balance returns the player's minted token balance in base units.
func (e *Engine) Balance(ctx context.Context, player string) (int64, error) {
	return e.tokens.Balance(ctx, player)
}

// ClaimedMilestones returns the thresholds the player has already been paid
// for, ascending.
func (e *Engine) ClaimedMilestones(ctx context.Context, player string) ([]int64, error) {
	return e.milestones.Claimed(ctx, player)
}

func (e *Engine) pay(ctx context.Context, player string, amount int64, reason string) error {
	if amount <= 0 {
		return nil
	}
	if err := e.tokens.Mint(ctx, player, amount); err != nil {
		return fmt.Errorf("minting reward: %w", err)
	}

	data, _ := json.Marshal(event.RewardMintedData{Player: player, Amount: amount, Reason: reason})
	e.append(ctx, event.Event{AggregateID: aggregateID(player), Type: event.RewardMinted, Data: data})

	e.logger.InfoContext(ctx, "reward minted",
		slog.String("player", player),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
	)
	return nil
}

// append stamps the next version in the aggregate's sequence and persists the
// event. The stored history carries a unique (aggregate, version) constraint,
// so an unversioned append would collide after the first event.
func (e *Engine) append(ctx context.Context, ev event.Event) {
	ev.Version = e.nextVersion(ctx, ev.AggregateID)
	if err := e.events.Append(ctx, ev); err != nil {
		e.logger.ErrorContext(ctx, "failed to append reward event", slog.Any("error", err))
	}
}

// nextVersion continues the aggregate's stored sequence, seeding the counter
// from the persisted history on first use after a restart.
func (e *Engine) nextVersion(ctx context.Context, aggregateID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, seeded := e.versions[aggregateID]
	if !seeded {
		history, err := e.events.Load(ctx, aggregateID)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to load event history for versioning",
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
	e.versions[aggregateID] = v + 1
	return v + 1
}
