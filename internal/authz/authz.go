// Package authz holds the capability checks performed at the top of every
// state-mutating settlement operation. The predicate is pure: it depends only
// on the caller identity, the operation, and the granted roles, so it can be
// tested without any storage or transport.
package authz

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the caller lacks the required role.
var ErrUnauthorized = errors.New("caller is not authorized for this operation")

// Op identifies a role-gated operation.
type Op string

const (
	OpCancelTournament Op = "tournament.cancel"
	OpReportResult     Op = "match.report"
	OpResolveDispute   Op = "match.resolve"
	OpForceBracket     Op = "bracket.force"
	OpFinalize         Op = "tournament.finalize"

	OpSetProtocolFee   Op = "protocol.set_fee"
	OpSetDisputeWindow Op = "protocol.set_dispute_window"

	OpRecordResult      Op = "passport.record_result"
	OpAttestAchievement Op = "passport.attest"
	OpRegisterAchievement Op = "passport.register_achievement"

	OpDistributeReward Op = "reward.distribute"
	OpSetRewardPolicy  Op = "reward.set_policy"
)

// Grants names the identities holding each role for a given scope. Zero-value
// fields grant nothing.
type Grants struct {
	// Admin may change protocol-wide and policy parameters.
	Admin string
	// Organizer created the tournament in scope.
	Organizer string
	// ResultAuthority is the game allowed to report results in scope.
	ResultAuthority string
	// Authorized is the set of identities allowed to submit results,
	// attestations, or reward distributions to a ledger-owning component.
	Authorized map[string]struct{}
}

// Allowed reports whether caller may perform op under g.
func Allowed(op Op, caller string, g Grants) bool {
	if caller == "" {
		return false
	}
	switch op {
	case OpCancelTournament, OpResolveDispute, OpForceBracket:
		return caller == g.Organizer
	case OpReportResult:
		return caller == g.ResultAuthority || caller == g.Organizer
	case OpFinalize, OpSetProtocolFee, OpSetDisputeWindow, OpSetRewardPolicy, OpRegisterAchievement:
		return caller == g.Admin
	case OpRecordResult, OpAttestAchievement, OpDistributeReward:
		_, ok := g.Authorized[caller]
		return ok
	}
	return false
}

// Check returns ErrUnauthorized (wrapped with the operation) unless caller may
// perform op under g.
func Check(op Op, caller string, g Grants) error {
	if !Allowed(op, caller, g) {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	return nil
}
