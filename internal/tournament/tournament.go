package tournament

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenaforge/bracketd/internal/authz"
	"github.com/arenaforge/bracketd/internal/bracket"
	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/event"
)

var tracer = otel.Tracer("github.com/arenaforge/bracketd/internal/tournament")

// Status is the lifecycle state of a tournament.
type Status string

const (
	StatusRegistration Status = "registration"
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
	StatusFinalized    Status = "finalized"
)

// Config is the immutable parameter set of a tournament, fixed at creation.
type Config struct {
	Name                 string
	Description          string
	Organizer            string
	ResultAuthority      string
	EntryFee             int64
	MaxPlayers           int
	PrizeSplitBps        []int64
	ProtocolFeeBps       int64
	RegistrationDeadline time.Time
	DisputeWindow        time.Duration
}

// Tournament is the aggregate root for a single tournament: registration and
// escrow, the match ledger, and prize claims. It is safe for concurrent use,
// though all writes go through the registry which serializes persistence.
type Tournament struct {
	mu sync.Mutex

	ID  string
	cfg Config

	status       Status
	participants []string
	registered   map[string]struct{}
	prizePool    int64
	refunded     map[string]struct{}

	seedRequestID string
	slots         []string
	matches       []*Match
	currentRound  int

	placements   map[string]int
	payouts      map[string]int64
	claimedPrize map[string]struct{}
	protocolFee  int64
	settled      bool

	Version   int
	events    []event.Event
	replaying bool

	clock clock.Clock
}

// New creates a tournament in the registration state and records a created
// event. Parameter validation is the registry's job.
func New(id string, cfg Config, clk clock.Clock) *Tournament {
	t := &Tournament{
		ID:           id,
		cfg:          cfg,
		status:       StatusRegistration,
		registered:   make(map[string]struct{}),
		refunded:     make(map[string]struct{}),
		claimedPrize: make(map[string]struct{}),
		clock:        clk,
	}

	data, _ := json.Marshal(event.TournamentCreatedData{
		Name:                 cfg.Name,
		Description:          cfg.Description,
		Organizer:            cfg.Organizer,
		ResultAuthority:      cfg.ResultAuthority,
		EntryFee:             cfg.EntryFee,
		MaxPlayers:           cfg.MaxPlayers,
		PrizeSplitBps:        cfg.PrizeSplitBps,
		ProtocolFeeBps:       cfg.ProtocolFeeBps,
		RegistrationDeadline: cfg.RegistrationDeadline,
		DisputeWindow:        cfg.DisputeWindow,
	})
	t.recordEvent(event.TournamentCreated, data)
	return t
}

// Register escrows the entry fee and adds the player. The returned filled
// flag is true when this registration was the one that filled the bracket;
// the caller must then issue a randomness request.
func (t *Tournament) Register(ctx context.Context, player string, amount int64) (filled bool, err error) {
	_, span := tracer.Start(ctx, "Tournament.Register",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.String("player", player),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRegistration {
		return false, ErrRegistrationClosed
	}
	if !t.clock.Now().Before(t.cfg.RegistrationDeadline) {
		return false, ErrRegistrationDeadline
	}
	if _, dup := t.registered[player]; dup {
		return false, ErrAlreadyRegistered
	}
	if len(t.participants) >= t.cfg.MaxPlayers {
		return false, ErrTournamentFull
	}
	if amount != t.cfg.EntryFee {
		return false, ErrWrongEntryFee
	}

	t.participants = append(t.participants, player)
	t.registered[player] = struct{}{}
	t.prizePool += amount
	filled = len(t.participants) == t.cfg.MaxPlayers

	data, _ := json.Marshal(event.RegisteredData{Player: player, Fee: amount, Filled: filled})
	t.recordEvent(event.TournamentRegistered, data)

	slog.InfoContext(ctx, "player registered",
		slog.String("tournament_id", t.ID),
		slog.String("player", player),
		slog.Int("registered", len(t.participants)),
		slog.Bool("filled", filled),
	)
	return filled, nil
}

// RequestSeed moves a filled tournament to the active state and pins the
// randomness request that will seed its bracket.
func (t *Tournament) RequestSeed(ctx context.Context, requestID string) error {
	_, span := tracer.Start(ctx, "Tournament.RequestSeed",
		trace.WithAttributes(attribute.String("tournament.id", t.ID)),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRegistration {
		return ErrRegistrationClosed
	}
	if t.slots != nil {
		return ErrBracketAlreadySeeded
	}

	t.status = StatusActive
	t.seedRequestID = requestID

	data, _ := json.Marshal(event.SeedRequestedData{RequestID: requestID})
	t.recordEvent(event.TournamentSeedRequested, data)
	return nil
}

// SeedBracket consumes the delivered random value and lays out the bracket.
// Byes auto-confirm, which may cascade entire rounds on a sparse bracket.
func (t *Tournament) SeedBracket(ctx context.Context, seed [32]byte) error {
	_, span := tracer.Start(ctx, "Tournament.SeedBracket",
		trace.WithAttributes(attribute.String("tournament.id", t.ID)),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusActive {
		return ErrNotActive
	}
	if t.slots != nil {
		return ErrBracketAlreadySeeded
	}
	if t.seedRequestID == "" {
		return ErrSeedNotRequested
	}

	slots, err := bracket.Seed(seed, t.participants, t.cfg.MaxPlayers)
	if err != nil {
		return fmt.Errorf("seeding bracket: %w", err)
	}
	t.applyBracket(ctx, slots, false)
	return nil
}

// ForceDeterministicBracket starts a partially filled tournament after the
// registration deadline with a seedless, registration-order bracket. Policy
// gating (test networks only) is the registry's job; this checks the caller
// and the lifecycle state.
func (t *Tournament) ForceDeterministicBracket(ctx context.Context, caller string) error {
	_, span := tracer.Start(ctx, "Tournament.ForceDeterministicBracket",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.String("caller", caller),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := authz.Check(authz.OpForceBracket, caller, t.grants()); err != nil {
		return err
	}
	if t.status != StatusRegistration {
		return ErrRegistrationClosed
	}
	if t.slots != nil {
		return ErrBracketAlreadySeeded
	}
	if t.clock.Now().Before(t.cfg.RegistrationDeadline) && len(t.participants) < t.cfg.MaxPlayers {
		return ErrRegistrationStillOpen
	}
	if len(t.participants) < 2 {
		return ErrTooFewParticipants
	}

	slots, err := bracket.Deterministic(t.participants, t.cfg.MaxPlayers)
	if err != nil {
		return fmt.Errorf("laying out bracket: %w", err)
	}
	t.status = StatusActive
	t.applyBracket(ctx, slots, true)
	return nil
}

func (t *Tournament) applyBracket(ctx context.Context, slots []string, deterministic bool) {
	t.slots = slots

	data, _ := json.Marshal(event.BracketSeededData{Slots: slots, Deterministic: deterministic})
	t.recordEvent(event.TournamentBracketSeeded, data)

	t.buildRound(0, bracket.Pairs(slots))
	t.advanceIfComplete(ctx)

	slog.InfoContext(ctx, "bracket seeded",
		slog.String("tournament_id", t.ID),
		slog.Int("players", len(t.participants)),
		slog.Int("slots", len(slots)),
		slog.Bool("deterministic", deterministic),
	)
}

// buildRound appends the matches of one round. Bye pairings confirm on the
// spot with the non-bye side as winner.
func (t *Tournament) buildRound(round int, pairs [][2]string) {
	t.currentRound = round
	for _, p := range pairs {
		m := &Match{
			ID:      len(t.matches),
			Round:   round,
			Players: p,
			Status:  MatchPending,
		}
		if m.isBye() {
			m.Winner = m.byeWinner()
			m.Status = MatchConfirmed
		}
		t.matches = append(t.matches, m)
	}
}

// ReportResult records a winner for a pending match. Only the configured
// result authority or the organizer may report.
func (t *Tournament) ReportResult(ctx context.Context, caller string, matchID int, winner string) error {
	_, span := tracer.Start(ctx, "Tournament.ReportResult",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.Int("match.id", matchID),
			attribute.String("winner", winner),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := authz.Check(authz.OpReportResult, caller, t.grants()); err != nil {
		return err
	}
	if t.status != StatusActive {
		return ErrNotActive
	}
	m, err := t.match(matchID)
	if err != nil {
		return err
	}
	if m.Status != MatchPending {
		return ErrMatchNotPending
	}
	if !m.has(winner) {
		return ErrInvalidWinner
	}

	m.Winner = winner
	m.ReportedBy = caller
	m.ReportedAt = t.clock.Now()
	m.Status = MatchReported

	data, _ := json.Marshal(event.MatchReportedData{
		MatchID:    matchID,
		Winner:     winner,
		ReportedBy: caller,
		ReportedAt: m.ReportedAt,
	})
	t.recordEvent(event.MatchReported, data)

	slog.InfoContext(ctx, "match result reported",
		slog.String("tournament_id", t.ID),
		slog.Int("match_id", matchID),
		slog.String("winner", winner),
	)
	return nil
}

// DisputeResult lets the losing participant contest a reported result while
// the dispute window is still open.
func (t *Tournament) DisputeResult(ctx context.Context, caller string, matchID int) error {
	_, span := tracer.Start(ctx, "Tournament.DisputeResult",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.Int("match.id", matchID),
			attribute.String("caller", caller),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusActive {
		return ErrNotActive
	}
	m, err := t.match(matchID)
	if err != nil {
		return err
	}
	if m.Status != MatchReported {
		return ErrMatchNotReported
	}
	if caller == m.Winner {
		return ErrSelfDispute
	}
	if caller != m.loser() {
		return ErrNotMatchLoser
	}
	if !t.clock.Now().Before(m.ReportedAt.Add(t.cfg.DisputeWindow)) {
		return ErrDisputeWindowClosed
	}

	m.Status = MatchDisputed

	data, _ := json.Marshal(event.MatchDisputedData{MatchID: matchID, DisputedBy: caller})
	t.recordEvent(event.MatchDisputed, data)

	slog.InfoContext(ctx, "match result disputed",
		slog.String("tournament_id", t.ID),
		slog.Int("match_id", matchID),
		slog.String("disputed_by", caller),
	)
	return nil
}

// ResolveDispute is the organizer's final call on a disputed match. The
// resolved winner may differ from the original report.
func (t *Tournament) ResolveDispute(ctx context.Context, caller string, matchID int, winner string) error {
	ctx, span := tracer.Start(ctx, "Tournament.ResolveDispute",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.Int("match.id", matchID),
			attribute.String("winner", winner),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := authz.Check(authz.OpResolveDispute, caller, t.grants()); err != nil {
		return err
	}
	if t.status != StatusActive {
		return ErrNotActive
	}
	m, err := t.match(matchID)
	if err != nil {
		return err
	}
	if m.Status != MatchDisputed {
		return ErrMatchNotDisputed
	}
	if !m.has(winner) {
		return ErrInvalidWinner
	}

	m.Winner = winner
	m.Status = MatchConfirmed

	data, _ := json.Marshal(event.MatchResolvedData{MatchID: matchID, Winner: winner})
	t.recordEvent(event.MatchResolved, data)

	slog.InfoContext(ctx, "dispute resolved",
		slog.String("tournament_id", t.ID),
		slog.Int("match_id", matchID),
		slog.String("winner", winner),
	)

	t.advanceIfComplete(ctx)
	return nil
}

// ConfirmResult finalizes a reported, undisputed match once the dispute
// window has elapsed. Anyone may call it.
func (t *Tournament) ConfirmResult(ctx context.Context, matchID int) error {
	ctx, span := tracer.Start(ctx, "Tournament.ConfirmResult",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.Int("match.id", matchID),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.match(matchID)
	if err != nil {
		return err
	}
	// Report the idempotent double-confirm before the lifecycle gate so a
	// completed tournament's matches still read as already confirmed.
	if m.Status == MatchConfirmed {
		return ErrMatchAlreadyConfirmed
	}
	if t.status != StatusActive {
		return ErrNotActive
	}
	switch m.Status {
	case MatchDisputed:
		return ErrMatchDisputed
	case MatchPending:
		return ErrMatchNotReported
	}
	if t.clock.Now().Before(m.ReportedAt.Add(t.cfg.DisputeWindow)) {
		return ErrDisputeWindowOpen
	}

	m.Status = MatchConfirmed

	data, _ := json.Marshal(event.MatchConfirmedData{MatchID: matchID})
	t.recordEvent(event.MatchConfirmed, data)

	t.advanceIfComplete(ctx)
	return nil
}

// advanceIfComplete builds the next round when every match of the current
// round is confirmed, or completes the tournament after the final. Bye
// cascades recurse through empty rounds.
func (t *Tournament) advanceIfComplete(ctx context.Context) {
	winners := make([]string, 0, len(t.matches))
	for _, m := range t.matches {
		if m.Round != t.currentRound {
			continue
		}
		if m.Status != MatchConfirmed {
			return
		}
		winners = append(winners, m.Winner)
	}

	if len(winners) == 1 {
		t.complete(ctx, winners[0])
		return
	}

	pairs := make([][2]string, 0, len(winners)/2)
	for i := 0; i+1 < len(winners); i += 2 {
		pairs = append(pairs, [2]string{winners[i], winners[i+1]})
	}
	t.buildRound(t.currentRound+1, pairs)
	t.advanceIfComplete(ctx)
}

// complete computes placements and the prize allocation. The champion places
// first, the losing finalist second, losing semifinalists third, and the rest
// count as participation. Payout truncation remainders stay unallocated.
func (t *Tournament) complete(ctx context.Context, champion string) {
	finalRound := t.currentRound

	t.placements = make(map[string]int, len(t.participants))
	for _, p := range t.participants {
		t.placements[p] = 0
	}
	t.placements[champion] = 1

	ranked := []string{champion}
	for round := finalRound; round >= 0; round-- {
		for _, m := range t.matches {
			if m.Round != round {
				continue
			}
			l := m.loser()
			if l == bracket.Bye {
				continue
			}
			ranked = append(ranked, l)
			switch round {
			case finalRound:
				t.placements[l] = 2
			case finalRound - 1:
				t.placements[l] = 3
			}
		}
	}

	t.payouts = make(map[string]int64, len(t.cfg.PrizeSplitBps))
	for i, bps := range t.cfg.PrizeSplitBps {
		if i >= len(ranked) {
			break
		}
		if amount := t.prizePool * bps / 10_000; amount > 0 {
			t.payouts[ranked[i]] = amount
		}
	}
	t.protocolFee = t.prizePool * t.cfg.ProtocolFeeBps / 10_000
	t.status = StatusCompleted

	data, _ := json.Marshal(event.CompletedData{
		Placements:  t.placements,
		Payouts:     t.payouts,
		ProtocolFee: t.protocolFee,
	})
	t.recordEvent(event.TournamentCompleted, data)

	slog.InfoContext(ctx, "tournament completed",
		slog.String("tournament_id", t.ID),
		slog.String("champion", champion),
		slog.Int64("prize_pool", t.prizePool),
		slog.Int64("protocol_fee", t.protocolFee),
	)
}

// Cancel aborts a tournament that is still registering. Organizer only.
func (t *Tournament) Cancel(ctx context.Context, caller string) error {
	_, span := tracer.Start(ctx, "Tournament.Cancel",
		trace.WithAttributes(attribute.String("tournament.id", t.ID)),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := authz.Check(authz.OpCancelTournament, caller, t.grants()); err != nil {
		return err
	}
	if t.status != StatusRegistration {
		return ErrNotCancellable
	}

	t.status = StatusCancelled
	t.recordEvent(event.TournamentCancelled, json.RawMessage(`{}`))

	slog.InfoContext(ctx, "tournament cancelled", slog.String("tournament_id", t.ID))
	return nil
}

// ClaimRefund pays a registrant back their full entry fee after cancellation,
// exactly once. No protocol fee is taken on refunds.
func (t *Tournament) ClaimRefund(ctx context.Context, caller string) (int64, error) {
	_, span := tracer.Start(ctx, "Tournament.ClaimRefund",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.String("player", caller),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusCancelled {
		return 0, ErrNotCancelled
	}
	if _, ok := t.registered[caller]; !ok {
		return 0, ErrNoRefundAvailable
	}
	if _, done := t.refunded[caller]; done {
		return 0, ErrRefundAlreadyClaimed
	}

	t.refunded[caller] = struct{}{}
	t.prizePool -= t.cfg.EntryFee

	data, _ := json.Marshal(event.ClaimData{Player: caller, Amount: t.cfg.EntryFee})
	t.recordEvent(event.RefundClaimed, data)

	slog.InfoContext(ctx, "refund claimed",
		slog.String("tournament_id", t.ID),
		slog.String("player", caller),
		slog.Int64("amount", t.cfg.EntryFee),
	)
	return t.cfg.EntryFee, nil
}

// ClaimableAmount returns the player's allocated, unclaimed prize share.
func (t *Tournament) ClaimableAmount(player string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusCompleted {
		return 0
	}
	if _, done := t.claimedPrize[player]; done {
		return 0
	}
	return t.payouts[player]
}

// ClaimPrize pays out the caller's allocated share, exactly once.
func (t *Tournament) ClaimPrize(ctx context.Context, caller string) (int64, error) {
	_, span := tracer.Start(ctx, "Tournament.ClaimPrize",
		trace.WithAttributes(
			attribute.String("tournament.id", t.ID),
			attribute.String("player", caller),
		),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusCompleted {
		return 0, ErrNotCompleted
	}
	amount, ok := t.payouts[caller]
	if !ok || amount == 0 {
		return 0, ErrNothingToClaim
	}
	if _, done := t.claimedPrize[caller]; done {
		return 0, ErrPrizeAlreadyClaimed
	}

	t.claimedPrize[caller] = struct{}{}
	t.prizePool -= amount

	data, _ := json.Marshal(event.ClaimData{Player: caller, Amount: amount})
	t.recordEvent(event.PrizeClaimed, data)

	slog.InfoContext(ctx, "prize claimed",
		slog.String("tournament_id", t.ID),
		slog.String("player", caller),
		slog.Int64("amount", amount),
	)
	return amount, nil
}

// Finalize is the administrative terminal state for a stuck active
// tournament. No payouts are computed.
func (t *Tournament) Finalize(ctx context.Context, caller string, admin string) error {
	_, span := tracer.Start(ctx, "Tournament.Finalize",
		trace.WithAttributes(attribute.String("tournament.id", t.ID)),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.grants()
	g.Admin = admin
	if err := authz.Check(authz.OpFinalize, caller, g); err != nil {
		return err
	}
	if t.status != StatusActive {
		return ErrNotActive
	}

	t.status = StatusFinalized
	t.recordEvent(event.TournamentFinalized, json.RawMessage(`{}`))

	slog.WarnContext(ctx, "tournament finalized administratively", slog.String("tournament_id", t.ID))
	return nil
}

// MarkSettled records that placement results have been pushed to the player
// ledger, so recovery does not settle twice.
func (t *Tournament) MarkSettled(ctx context.Context) {
	_, span := tracer.Start(ctx, "Tournament.MarkSettled",
		trace.WithAttributes(attribute.String("tournament.id", t.ID)),
	)
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.settled {
		return
	}
	t.settled = true
	t.recordEvent(event.TournamentSettled, json.RawMessage(`{}`))
}

// Read accessors. All return copies.

func (t *Tournament) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg := t.cfg
	cfg.PrizeSplitBps = slices.Clone(t.cfg.PrizeSplitBps)
	return cfg
}

func (t *Tournament) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tournament) PrizePool() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prizePool
}

func (t *Tournament) ProtocolFee() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.protocolFee
}

func (t *Tournament) Players() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.participants)
}

func (t *Tournament) Bracket() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.slots)
}

func (t *Tournament) Matches() []Match {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Match, len(t.matches))
	for i, m := range t.matches {
		out[i] = *m
	}
	return out
}

func (t *Tournament) Placements() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.placements)
}

func (t *Tournament) SeedRequestID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seedRequestID
}

func (t *Tournament) Settled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled
}

func (t *Tournament) match(id int) (*Match, error) {
	if id < 0 || id >= len(t.matches) {
		return nil, ErrMatchNotFound
	}
	return t.matches[id], nil
}

func (t *Tournament) grants() authz.Grants {
	return authz.Grants{
		Organizer:       t.cfg.Organizer,
		ResultAuthority: t.cfg.ResultAuthority,
	}
}

// PendingEvents returns uncommitted events and clears the buffer.
func (t *Tournament) PendingEvents() []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.events
	t.events = nil
	return events
}

func (t *Tournament) recordEvent(typ event.Type, data json.RawMessage) {
	if t.replaying {
		return
	}
	t.Version++
	t.events = append(t.events, event.Event{
		AggregateID: t.ID,
		Type:        typ,
		Data:        data,
		Version:     t.Version,
	})
}

// Replay reconstructs a tournament from its event history. Rounds and bye
// confirmations are derived from the seeded slots rather than stored, so the
// bracket cascade runs again during replay.
func Replay(events []event.Event, clk clock.Clock) (*Tournament, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to replay")
	}

	t := &Tournament{
		registered:   make(map[string]struct{}),
		refunded:     make(map[string]struct{}),
		claimedPrize: make(map[string]struct{}),
		clock:        clk,
		replaying:    true,
	}
	defer func() { t.replaying = false }()

	ctx := context.Background()
	for _, e := range events {
		if err := t.apply(ctx, e); err != nil {
			return nil, fmt.Errorf("replaying %s event: %w", e.Type, err)
		}
		t.Version = e.Version
	}
	return t, nil
}

func (t *Tournament) apply(ctx context.Context, e event.Event) error {
	switch e.Type {
	case event.TournamentCreated:
		var d event.TournamentCreatedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.ID = e.AggregateID
		t.cfg = Config{
			Name:                 d.Name,
			Description:          d.Description,
			Organizer:            d.Organizer,
			ResultAuthority:      d.ResultAuthority,
			EntryFee:             d.EntryFee,
			MaxPlayers:           d.MaxPlayers,
			PrizeSplitBps:        d.PrizeSplitBps,
			ProtocolFeeBps:       d.ProtocolFeeBps,
			RegistrationDeadline: d.RegistrationDeadline,
			DisputeWindow:        d.DisputeWindow,
		}
		t.status = StatusRegistration

	case event.TournamentRegistered:
		var d event.RegisteredData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.participants = append(t.participants, d.Player)
		t.registered[d.Player] = struct{}{}
		t.prizePool += d.Fee

	case event.TournamentSeedRequested:
		var d event.SeedRequestedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.seedRequestID = d.RequestID
		t.status = StatusActive

	case event.TournamentBracketSeeded:
		var d event.BracketSeededData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.status = StatusActive
		t.slots = d.Slots
		t.buildRound(0, bracket.Pairs(d.Slots))
		t.advanceIfComplete(ctx)

	case event.MatchReported:
		var d event.MatchReportedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		m, err := t.match(d.MatchID)
		if err != nil {
			return err
		}
		m.Winner = d.Winner
		m.ReportedBy = d.ReportedBy
		m.ReportedAt = d.ReportedAt
		m.Status = MatchReported

	case event.MatchDisputed:
		var d event.MatchDisputedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		m, err := t.match(d.MatchID)
		if err != nil {
			return err
		}
		m.Status = MatchDisputed

	case event.MatchResolved:
		var d event.MatchResolvedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		m, err := t.match(d.MatchID)
		if err != nil {
			return err
		}
		m.Winner = d.Winner
		m.Status = MatchConfirmed
		t.advanceIfComplete(ctx)

	case event.MatchConfirmed:
		var d event.MatchConfirmedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		m, err := t.match(d.MatchID)
		if err != nil {
			return err
		}
		m.Status = MatchConfirmed
		t.advanceIfComplete(ctx)

	case event.TournamentCompleted:
		var d event.CompletedData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.status = StatusCompleted
		t.placements = d.Placements
		t.payouts = d.Payouts
		t.protocolFee = d.ProtocolFee

	case event.TournamentCancelled:
		t.status = StatusCancelled

	case event.RefundClaimed:
		var d event.ClaimData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.refunded[d.Player] = struct{}{}
		t.prizePool -= d.Amount

	case event.PrizeClaimed:
		var d event.ClaimData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return err
		}
		t.claimedPrize[d.Player] = struct{}{}
		t.prizePool -= d.Amount

	case event.TournamentSettled:
		t.settled = true

	case event.TournamentFinalized:
		t.status = StatusFinalized
	}
	return nil
}
