package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenaforge/bracketd/internal/authz"
	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/config"
	"github.com/arenaforge/bracketd/internal/event"
	"github.com/arenaforge/bracketd/internal/rng"
)

// Identity is the caller identity the registry uses when pushing settlement
// results into the player ledger.
const Identity = "tournament-registry"

// Result is one player's outcome in a completed tournament, as handed to the
// player ledger.
type Result struct {
	TournamentID string
	Player       string
	Placement    int
	Prize        int64
	EntryFee     int64
}

// ResultSink receives settlement results. Implemented by the player ledger.
type ResultSink interface {
	RecordTournamentResult(ctx context.Context, caller string, res Result) error
}

// Registry validates tournament creation, owns the live tournament set, and
// carries the protocol-wide settlement parameters.
type Registry struct {
	mu          sync.RWMutex
	tournaments map[string]*Tournament

	feeBps             int64
	disputeWindow      time.Duration
	allowDeterministic bool
	admin              string

	randomness *rng.Table
	events     event.Store
	results    ResultSink
	logger     *slog.Logger
	tracer     trace.Tracer
	clock      clock.Clock
}

// NewRegistry creates a Registry with the configured protocol parameters.
func NewRegistry(events event.Store, results ResultSink, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock, cfg config.ProtocolConfig) *Registry {
	return &Registry{
		tournaments:        make(map[string]*Tournament),
		feeBps:             cfg.FeeBps,
		disputeWindow:      cfg.DisputeWindow,
		allowDeterministic: cfg.AllowDeterministicSeeding,
		admin:              cfg.Admin,
		randomness:         rng.NewTable(),
		events:             events,
		results:            results,
		logger:             logger,
		tracer:             tp.Tracer("github.com/arenaforge/bracketd/internal/tournament"),
		clock:              clk,
	}
}

// CreateParams are the organizer-supplied creation parameters. The protocol
// fee and, when zero, the dispute window come from the registry.
type CreateParams struct {
	Name            string
	Description     string
	Organizer       string
	ResultAuthority string
	EntryFee        int64
	MaxPlayers      int
	PrizeSplitBps   []int64
	Deadline        time.Time
	DisputeWindow   time.Duration
}

// CreateTournament validates params and instantiates a tournament.
func (r *Registry) CreateTournament(ctx context.Context, params CreateParams) (*Tournament, error) {
	ctx, span := r.tracer.Start(ctx, "Registry.CreateTournament",
		trace.WithAttributes(
			attribute.String("name", params.Name),
			attribute.String("organizer", params.Organizer),
			attribute.Int("max_players", params.MaxPlayers),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if params.Name == "" {
		return nil, ErrNameRequired
	}
	if params.ResultAuthority == "" {
		return nil, ErrAuthorityRequired
	}
	if params.MaxPlayers < 2 || params.MaxPlayers > 128 || params.MaxPlayers&(params.MaxPlayers-1) != 0 {
		return nil, ErrInvalidBracketSize
	}
	if params.EntryFee < 0 {
		return nil, ErrNegativeEntryFee
	}
	if !params.Deadline.After(r.clock.Now()) {
		return nil, ErrDeadlineInPast
	}
	var splitSum int64
	for _, bps := range params.PrizeSplitBps {
		splitSum += bps
	}
	if splitSum != 10_000-r.feeBps {
		return nil, ErrInvalidPrizeSplit
	}
	if len(params.PrizeSplitBps) > params.MaxPlayers/2 {
		return nil, ErrTooManyPrizePositions
	}
	window := params.DisputeWindow
	if window == 0 {
		window = r.disputeWindow
	}
	if window < config.MinDisputeWindow {
		return nil, ErrWindowTooShort
	}

	id := "tournament-" + uuid.NewString()
	t := New(id, Config{
		Name:                 params.Name,
		Description:          params.Description,
		Organizer:            params.Organizer,
		ResultAuthority:      params.ResultAuthority,
		EntryFee:             params.EntryFee,
		MaxPlayers:           params.MaxPlayers,
		PrizeSplitBps:        params.PrizeSplitBps,
		ProtocolFeeBps:       r.feeBps,
		RegistrationDeadline: params.Deadline,
		DisputeWindow:        window,
	}, r.clock)

	if err := r.events.Append(ctx, t.PendingEvents()...); err != nil {
		return nil, fmt.Errorf("persisting tournament created events: %w", err)
	}
	r.tournaments[id] = t

	r.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", id),
		slog.String("name", params.Name),
		slog.Int("max_players", params.MaxPlayers),
		slog.Int64("entry_fee", params.EntryFee),
	)
	return t, nil
}

// Tournament returns the live tournament with the given id.
func (r *Registry) Tournament(id string) (*Tournament, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return t, nil
}

// List returns the ids of all tracked tournaments.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tournaments))
	for id := range r.tournaments {
		ids = append(ids, id)
	}
	return ids
}

// Register escrows the entry fee. The registration that fills the bracket
// also issues the randomness request that will seed it.
func (r *Registry) Register(ctx context.Context, tournamentID, player string, amount int64) error {
	ctx, span := r.tracer.Start(ctx, "Registry.Register",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.String("player", player),
		),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}

	filled, err := t.Register(ctx, player, amount)
	if err != nil {
		return err
	}
	if filled {
		requestID := r.randomness.Issue(tournamentID)
		if err := t.RequestSeed(ctx, requestID); err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "randomness requested",
			slog.String("tournament_id", tournamentID),
			slog.String("request_id", requestID),
		)
	}

	return r.persist(ctx, t)
}

// DeliverRandomness consumes a random value for an outstanding request and
// seeds the bracket. Duplicate or unknown deliveries are rejected.
func (r *Registry) DeliverRandomness(ctx context.Context, requestID string, value [32]byte) error {
	ctx, span := r.tracer.Start(ctx, "Registry.DeliverRandomness",
		trace.WithAttributes(attribute.String("request_id", requestID)),
	)
	defer span.End()

	tournamentID, err := r.randomness.Fulfill(requestID)
	if err != nil {
		return err
	}
	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}

	if err := t.SeedBracket(ctx, value); err != nil {
		return err
	}
	if err := r.persist(ctx, t); err != nil {
		return err
	}
	return r.settleIfCompleted(ctx, t)
}

// ForceDeterministicBracket starts a partially filled tournament without a
// delivered random value, when policy allows it.
func (r *Registry) ForceDeterministicBracket(ctx context.Context, tournamentID, caller string) error {
	ctx, span := r.tracer.Start(ctx, "Registry.ForceDeterministicBracket",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	if !r.allowDeterministic {
		return ErrDeterministicDisallowed
	}
	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}

	if err := t.ForceDeterministicBracket(ctx, caller); err != nil {
		return err
	}
	if err := r.persist(ctx, t); err != nil {
		return err
	}
	return r.settleIfCompleted(ctx, t)
}

// ReportResult records a match winner.
func (r *Registry) ReportResult(ctx context.Context, tournamentID, caller string, matchID int, winner string) error {
	ctx, span := r.tracer.Start(ctx, "Registry.ReportResult",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.Int("match_id", matchID),
		),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}
	if err := t.ReportResult(ctx, caller, matchID, winner); err != nil {
		return err
	}
	return r.persist(ctx, t)
}

// DisputeResult contests a reported match on behalf of its loser.
func (r *Registry) DisputeResult(ctx context.Context, tournamentID, caller string, matchID int) error {
	ctx, span := r.tracer.Start(ctx, "Registry.DisputeResult",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.Int("match_id", matchID),
		),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}
	if err := t.DisputeResult(ctx, caller, matchID); err != nil {
		return err
	}
	return r.persist(ctx, t)
}

// ResolveDispute settles a disputed match with the organizer's verdict.
func (r *Registry) ResolveDispute(ctx context.Context, tournamentID, caller string, matchID int, winner string) error {
	ctx, span := r.tracer.Start(ctx, "Registry.ResolveDispute",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.Int("match_id", matchID),
		),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}
	if err := t.ResolveDispute(ctx, caller, matchID, winner); err != nil {
		return err
	}
	if err := r.persist(ctx, t); err != nil {
		return err
	}
	return r.settleIfCompleted(ctx, t)
}

// ConfirmResult finalizes a reported match once its dispute window elapsed.
func (r *Registry) ConfirmResult(ctx context.Context, tournamentID string, matchID int) error {
	ctx, span := r.tracer.Start(ctx, "Registry.ConfirmResult",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.Int("match_id", matchID),
		),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}
	if err := t.ConfirmResult(ctx, matchID); err != nil {
		return err
	}
	if err := r.persist(ctx, t); err != nil {
		return err
	}
	return r.settleIfCompleted(ctx, t)
}

// CancelTournament aborts a registering tournament.
func (r *Registry) CancelTournament(ctx context.Context, tournamentID, caller string) error {
	ctx, span := r.tracer.Start(ctx, "Registry.CancelTournament",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}
	if err := t.Cancel(ctx, caller); err != nil {
		return err
	}
	return r.persist(ctx, t)
}

// ClaimRefund pays back an entry fee after cancellation.
func (r *Registry) ClaimRefund(ctx context.Context, tournamentID, caller string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "Registry.ClaimRefund",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return 0, err
	}
	amount, err := t.ClaimRefund(ctx, caller)
	if err != nil {
		return 0, err
	}
	return amount, r.persist(ctx, t)
}

// ClaimPrize pays out a completed tournament's allocated share.
func (r *Registry) ClaimPrize(ctx context.Context, tournamentID, caller string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "Registry.ClaimPrize",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return 0, err
	}
	amount, err := t.ClaimPrize(ctx, caller)
	if err != nil {
		return 0, err
	}
	return amount, r.persist(ctx, t)
}

// Finalize administratively terminates a stuck active tournament.
func (r *Registry) Finalize(ctx context.Context, tournamentID, caller string) error {
	ctx, span := r.tracer.Start(ctx, "Registry.Finalize",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	t, err := r.Tournament(tournamentID)
	if err != nil {
		return err
	}
	if err := t.Finalize(ctx, caller, r.adminIdentity()); err != nil {
		return err
	}
	return r.persist(ctx, t)
}

// SetProtocolFee changes the fee taken from future prize pools. Admin only,
// capped at 10%.
func (r *Registry) SetProtocolFee(ctx context.Context, caller string, bps int64) error {
	_, span := r.tracer.Start(ctx, "Registry.SetProtocolFee",
		trace.WithAttributes(attribute.Int64("fee_bps", bps)),
	)
	defer span.End()

	if err := authz.Check(authz.OpSetProtocolFee, caller, authz.Grants{Admin: r.adminIdentity()}); err != nil {
		return err
	}
	if bps < 0 || bps > config.MaxProtocolFeeBps {
		return ErrFeeTooHigh
	}

	r.mu.Lock()
	r.feeBps = bps
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "protocol fee updated", slog.Int64("fee_bps", bps))
	return nil
}

// SetDisputeWindow changes the default dispute window for future
// tournaments. Admin only, floored at one minute.
func (r *Registry) SetDisputeWindow(ctx context.Context, caller string, window time.Duration) error {
	_, span := r.tracer.Start(ctx, "Registry.SetDisputeWindow",
		trace.WithAttributes(attribute.String("window", window.String())),
	)
	defer span.End()

	if err := authz.Check(authz.OpSetDisputeWindow, caller, authz.Grants{Admin: r.adminIdentity()}); err != nil {
		return err
	}
	if window < config.MinDisputeWindow {
		return ErrWindowTooShort
	}

	r.mu.Lock()
	r.disputeWindow = window
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "dispute window updated", slog.String("window", window.String()))
	return nil
}

// ProtocolFeeBps returns the current protocol fee.
func (r *Registry) ProtocolFeeBps() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeBps
}

// DisputeWindow returns the current default dispute window.
func (r *Registry) DisputeWindow() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disputeWindow
}

// SweepConfirmable confirms every reported match whose dispute window has
// elapsed. Run periodically by the leader so tournaments cannot stall on a
// missing confirm call. Returns the number of matches confirmed.
func (r *Registry) SweepConfirmable(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "Registry.SweepConfirmable")
	defer span.End()

	r.mu.RLock()
	live := make([]*Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		live = append(live, t)
	}
	r.mu.RUnlock()

	confirmed := 0
	for _, t := range live {
		if t.Status() != StatusActive {
			continue
		}
		for _, m := range t.Matches() {
			if m.Status != MatchReported {
				continue
			}
			if r.clock.Now().Before(m.ReportedAt.Add(t.Config().DisputeWindow)) {
				continue
			}
			if err := t.ConfirmResult(ctx, m.ID); err != nil {
				r.logger.WarnContext(ctx, "sweep confirm failed",
					slog.String("tournament_id", t.ID),
					slog.Int("match_id", m.ID),
					slog.Any("error", err),
				)
				continue
			}
			confirmed++
		}
		if err := r.persist(ctx, t); err != nil {
			return confirmed, err
		}
		if err := r.settleIfCompleted(ctx, t); err != nil {
			return confirmed, err
		}
	}

	if confirmed > 0 {
		r.logger.InfoContext(ctx, "confirm sweep complete", slog.Int("confirmed", confirmed))
	}
	return confirmed, nil
}

// RecoverTournaments replays every tournament from the event store on leader
// startup. Completed tournaments stay loaded so prize claims keep working;
// pending randomness requests are restored; completed-but-unsettled
// tournaments are settled now.
func (r *Registry) RecoverTournaments(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "Registry.RecoverTournaments")
	defer span.End()

	created, err := r.events.LoadByType(ctx, event.TournamentCreated)
	if err != nil {
		return 0, fmt.Errorf("loading tournament created events: %w", err)
	}

	seen := make(map[string]struct{}, len(created))
	var ids []string
	for _, e := range created {
		if _, ok := seen[e.AggregateID]; !ok {
			seen[e.AggregateID] = struct{}{}
			ids = append(ids, e.AggregateID)
		}
	}

	recovered := 0
	for _, id := range ids {
		history, loadErr := r.events.Load(ctx, id)
		if loadErr != nil {
			r.logger.WarnContext(ctx, "failed to load tournament history during recovery",
				slog.String("tournament_id", id),
				slog.Any("error", loadErr),
			)
			continue
		}
		t, replayErr := Replay(history, r.clock)
		if replayErr != nil {
			r.logger.WarnContext(ctx, "failed to replay tournament during recovery",
				slog.String("tournament_id", id),
				slog.Any("error", replayErr),
			)
			continue
		}

		r.mu.Lock()
		r.tournaments[id] = t
		r.mu.Unlock()
		recovered++

		if reqID := t.SeedRequestID(); reqID != "" && t.Status() == StatusActive && t.Bracket() == nil {
			r.randomness.Restore(reqID, id)
			r.logger.InfoContext(ctx, "restored pending randomness request",
				slog.String("tournament_id", id),
				slog.String("request_id", reqID),
			)
		}
		if err := r.settleIfCompleted(ctx, t); err != nil {
			r.logger.WarnContext(ctx, "failed to settle tournament during recovery",
				slog.String("tournament_id", id),
				slog.Any("error", err),
			)
		}
	}

	r.logger.InfoContext(ctx, "tournament recovery complete",
		slog.Int("total_created", len(ids)),
		slog.Int("recovered", recovered),
	)
	return recovered, nil
}

// settleIfCompleted pushes placement results into the player ledger once per
// tournament. Ledger failures for individual players are logged and skipped;
// the tournament is marked settled regardless so claims are never blocked.
func (r *Registry) settleIfCompleted(ctx context.Context, t *Tournament) error {
	if t.Status() != StatusCompleted || t.Settled() {
		return nil
	}

	cfg := t.Config()
	placements := t.Placements()
	for _, player := range t.Players() {
		res := Result{
			TournamentID: t.ID,
			Player:       player,
			Placement:    placements[player],
			Prize:        t.ClaimableAmount(player),
			EntryFee:     cfg.EntryFee,
		}
		if err := r.results.RecordTournamentResult(ctx, Identity, res); err != nil {
			r.logger.ErrorContext(ctx, "failed to record tournament result",
				slog.String("tournament_id", t.ID),
				slog.String("player", player),
				slog.Any("error", err),
			)
		}
	}

	t.MarkSettled(ctx)
	return r.persist(ctx, t)
}

func (r *Registry) persist(ctx context.Context, t *Tournament) error {
	events := t.PendingEvents()
	if len(events) == 0 {
		return nil
	}
	if err := r.events.Append(ctx, events...); err != nil {
		return fmt.Errorf("persisting tournament events: %w", err)
	}
	return nil
}

func (r *Registry) adminIdentity() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}
