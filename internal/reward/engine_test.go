package reward_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/arenaforge/bracketd/internal/authz"
	"github.com/arenaforge/bracketd/internal/event"
	"github.com/arenaforge/bracketd/internal/reward"
	"github.com/arenaforge/bracketd/internal/scoring"
)

type memTokens struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemTokens() *memTokens {
	return &memTokens{balances: make(map[string]int64)}
}

func (m *memTokens) Mint(_ context.Context, player string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[player] += amount
	return nil
}

func (m *memTokens) Balance(_ context.Context, player string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[player], nil
}

type memMilestones struct {
	mu      sync.Mutex
	claimed map[string]map[int64]bool
}

func newMemMilestones() *memMilestones {
	return &memMilestones{claimed: make(map[string]map[int64]bool)}
}

func (m *memMilestones) TryClaim(_ context.Context, player string, threshold int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[player] == nil {
		m.claimed[player] = make(map[int64]bool)
	}
	if m.claimed[player][threshold] {
		return false, nil
	}
	m.claimed[player][threshold] = true
	return true, nil
}

func (m *memMilestones) Claimed(_ context.Context, player string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for th := range m.claimed[player] {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []event.Event
}

// Append enforces the same unique (aggregate_id, version) constraint as the
// SQL schema.
func (m *memEvents) Append(_ context.Context, events ...event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		for _, have := range m.events {
			if have.AggregateID == e.AggregateID && have.Version == e.Version {
				return fmt.Errorf("duplicate version %d for aggregate %s", e.Version, e.AggregateID)
			}
		}
		m.events = append(m.events, e)
	}
	return nil
}

func (m *memEvents) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, e := range m.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

const (
	passportID = "player-passport"
	adminID    = "protocol-admin"
	player     = "p1"
)

func newTestEngine() (*reward.Engine, *memTokens, *memEvents) {
	tokens := newMemTokens()
	events := &memEvents{}
	e := reward.NewEngine(tokens, newMemMilestones(), events,
		slog.Default(), noop.NewTracerProvider(), adminID, passportID)
	return e, tokens, events
}

func TestDistributeTournamentReward(t *testing.T) {
	e, tokens, events := newTestEngine()
	ctx := context.Background()

	tests := []struct {
		name      string
		placement int
		fee       int64
		streak    int
		want      int64
	}{
		{"free win, cold streak", 1, 0, 1, 50 * reward.TokenUnit},
		{"low tier second place", 2, scoring.CurrencyUnit, 0, 25 * reward.TokenUnit * 3 / 2},
		{"medium tier win with streak 5", 1, 5 * scoring.CurrencyUnit, 5, 100*reward.TokenUnit + 20*reward.TokenUnit},
		{"participation is flat", 9, 100 * scoring.CurrencyUnit, 0, 5 * reward.TokenUnit},
	}
	var total int64
	for _, tt := range tests {
		got, err := e.DistributeTournamentReward(ctx, passportID, player, tt.placement, tt.fee, tt.streak)
		if err != nil {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: minted %d, want %d", tt.name, got, tt.want)
		}
		total += tt.want
	}

	balance, err := tokens.Balance(ctx, player)
	if err != nil || balance != total {
		t.Errorf("Balance = %d (err %v), want %d", balance, err, total)
	}

	minted, err := events.LoadByType(ctx, event.RewardMinted)
	if err != nil || len(minted) != len(tests) {
		t.Fatalf("RewardMinted events = %d (err %v), want %d", len(minted), err, len(tests))
	}
	for i, e := range minted {
		if e.Version != i+1 {
			t.Errorf("minted[%d].Version = %d, want %d", i, e.Version, i+1)
		}
	}
}

func TestDistributeTournamentReward_Unauthorized(t *testing.T) {
	e, tokens, _ := newTestEngine()

	_, err := e.DistributeTournamentReward(context.Background(), "mallory", player, 1, 0, 1)
	if !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if balance, _ := tokens.Balance(context.Background(), player); balance != 0 {
		t.Errorf("Balance = %d, want 0", balance)
	}
}

func TestDistributeAchievementReward(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	for rarity, want := range map[string]int64{
		reward.RarityCommon:    5 * reward.TokenUnit,
		reward.RarityRare:      25 * reward.TokenUnit,
		reward.RarityLegendary: 100 * reward.TokenUnit,
	} {
		got, err := e.DistributeAchievementReward(ctx, passportID, player, rarity)
		if err != nil {
			t.Fatalf("DistributeAchievementReward(%s) error = %v", rarity, err)
		}
		if got != want {
			t.Errorf("%s minted %d, want %d", rarity, got, want)
		}
	}

	if _, err := e.DistributeAchievementReward(ctx, passportID, player, "mythic"); !errors.Is(err, reward.ErrUnknownRarity) {
		t.Fatalf("unknown rarity error = %v, want ErrUnknownRarity", err)
	}
}

func TestDistributeMilestones(t *testing.T) {
	e, tokens, events := newTestEngine()
	ctx := context.Background()

	// Crossing 5,000 for the first time pays the 1,000 and 5,000 rewards in
	// one call.
	total, err := e.DistributeMilestones(ctx, passportID, player, 5_200)
	if err != nil {
		t.Fatalf("DistributeMilestones() error = %v", err)
	}
	if want := 600 * reward.TokenUnit; total != want {
		t.Errorf("first crossing minted %d, want %d", total, want)
	}

	// The same or a higher score below the next threshold pays nothing.
	total, err = e.DistributeMilestones(ctx, passportID, player, 8_000)
	if err != nil || total != 0 {
		t.Errorf("repeat call minted %d (err %v), want 0", total, err)
	}

	// Crossing the last threshold pays only the new one.
	total, err = e.DistributeMilestones(ctx, passportID, player, 12_000)
	if err != nil {
		t.Fatalf("DistributeMilestones() error = %v", err)
	}
	if want := 1_000 * reward.TokenUnit; total != want {
		t.Errorf("final crossing minted %d, want %d", total, want)
	}

	claimed, err := e.ClaimedMilestones(ctx, player)
	if err != nil {
		t.Fatalf("ClaimedMilestones() error = %v", err)
	}
	if len(claimed) != 3 || claimed[0] != 1_000 || claimed[2] != 10_000 {
		t.Errorf("claimed = %v, want [1000 5000 10000]", claimed)
	}

	if balance, _ := tokens.Balance(ctx, player); balance != 1_600*reward.TokenUnit {
		t.Errorf("Balance = %d, want %d", balance, 1_600*reward.TokenUnit)
	}
	paid, err := events.LoadByType(ctx, event.MilestonePaid)
	if err != nil || len(paid) != 3 {
		t.Errorf("MilestonePaid events = %d (err %v), want 3", len(paid), err)
	}
}

func TestSetMilestones(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	if err := e.SetMilestones(ctx, passportID, []int64{100}, []int64{1}); !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("non-admin error = %v, want ErrUnauthorized", err)
	}
	if err := e.SetMilestones(ctx, adminID, []int64{100, 200}, []int64{1}); !errors.Is(err, reward.ErrMilestoneLengthMismatch) {
		t.Fatalf("mismatch error = %v, want ErrMilestoneLengthMismatch", err)
	}
	for _, thresholds := range [][]int64{{200, 100}, {100, 100}, {0, 100}} {
		err := e.SetMilestones(ctx, adminID, thresholds, []int64{1, 2})
		if !errors.Is(err, reward.ErrMilestonesNotAscending) {
			t.Fatalf("thresholds %v error = %v, want ErrMilestonesNotAscending", thresholds, err)
		}
	}

	if err := e.SetMilestones(ctx, adminID, []int64{50, 500}, []int64{7, 70}); err != nil {
		t.Fatalf("SetMilestones() error = %v", err)
	}
	got := e.Milestones()
	if len(got) != 2 || got[0].Threshold != 50 || got[1].Reward != 70 {
		t.Errorf("Milestones() = %v, want [{50 7} {500 70}]", got)
	}

	total, err := e.DistributeMilestones(ctx, passportID, player, 60)
	if err != nil || total != 7 {
		t.Errorf("minted %d (err %v), want 7", total, err)
	}
}

func TestSetRates(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	if err := e.SetRates(ctx, passportID, scoring.Table{}); !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("non-admin error = %v, want ErrUnauthorized", err)
	}

	table := scoring.Table{FirstPlace: 10, TopThree: 5, Participation: 1, StreakStep: 2}
	if err := e.SetRates(ctx, adminID, table); err != nil {
		t.Fatalf("SetRates() error = %v", err)
	}

	got, err := e.DistributeTournamentReward(ctx, passportID, player, 1, 0, 4)
	if err != nil {
		t.Fatalf("DistributeTournamentReward() error = %v", err)
	}
	if got != 12 {
		t.Errorf("minted %d, want 12 (10 base + 2 streak step)", got)
	}
}
