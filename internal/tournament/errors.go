package tournament

import "errors"

// Errors returned by tournament operations. Time-window failures are distinct
// from state conflicts so callers can branch on them.
var (
	ErrTournamentNotFound = errors.New("tournament not found")

	// Registration and escrow.
	ErrRegistrationClosed   = errors.New("tournament is not accepting registrations")
	ErrRegistrationDeadline = errors.New("registration deadline has passed")
	ErrAlreadyRegistered    = errors.New("player is already registered")
	ErrTournamentFull       = errors.New("tournament is full")
	ErrWrongEntryFee        = errors.New("payment does not match the entry fee")
	ErrNotCancellable       = errors.New("tournament can no longer be cancelled")
	ErrNotCancelled         = errors.New("tournament is not cancelled")
	ErrNoRefundAvailable    = errors.New("no refund available for this player")
	ErrRefundAlreadyClaimed = errors.New("refund already claimed")

	// Bracket seeding.
	ErrBracketAlreadySeeded    = errors.New("bracket has already been generated")
	ErrSeedNotRequested        = errors.New("no randomness request is outstanding")
	ErrDeterministicDisallowed = errors.New("deterministic seeding is not allowed by policy")
	ErrRegistrationStillOpen   = errors.New("registration is still open")
	ErrTooFewParticipants      = errors.New("not enough participants to start")
	ErrNotActive               = errors.New("tournament is not active")

	// Match ledger.
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchNotPending       = errors.New("match already has a reported result")
	ErrMatchNotReported      = errors.New("match has no reported result")
	ErrMatchNotDisputed      = errors.New("match is not disputed")
	ErrMatchAlreadyConfirmed = errors.New("match result is already confirmed")
	ErrMatchDisputed         = errors.New("match is disputed and needs resolution")
	ErrInvalidWinner         = errors.New("winner is not a participant of this match")
	ErrSelfDispute           = errors.New("the declared winner cannot dispute their own win")
	ErrNotMatchLoser         = errors.New("only the losing participant may dispute")
	ErrDisputeWindowClosed   = errors.New("dispute window has closed")
	ErrDisputeWindowOpen     = errors.New("dispute window has not elapsed yet")

	// Prizes.
	ErrNotCompleted        = errors.New("tournament is not completed")
	ErrNothingToClaim      = errors.New("no prize allocated to this player")
	ErrPrizeAlreadyClaimed = errors.New("prize already claimed")

	// Creation and protocol parameters.
	ErrNameRequired          = errors.New("tournament name is required")
	ErrAuthorityRequired     = errors.New("result authority is required")
	ErrInvalidBracketSize    = errors.New("max players must be a power of two between 2 and 128")
	ErrNegativeEntryFee      = errors.New("entry fee cannot be negative")
	ErrDeadlineInPast        = errors.New("registration deadline is in the past")
	ErrInvalidPrizeSplit     = errors.New("prize split must sum to 10000 minus the protocol fee")
	ErrTooManyPrizePositions = errors.New("prize positions exceed half the bracket size")
	ErrFeeTooHigh            = errors.New("protocol fee exceeds the cap")
	ErrWindowTooShort        = errors.New("dispute window below the minimum")
)
