// Package scoring holds the pure placement/tier/streak arithmetic shared by
// the player passport and the reward engine. Both policies use the same
// shapes with different constant tables, which keeps the two numerically
// consistent without coupling the components.
package scoring

// CurrencyUnit is the number of base units in one whole unit of the native
// currency. Stake-tier boundaries are defined in whole units.
const CurrencyUnit int64 = 1_000_000

// Tier is a stake tier keyed by a tournament's entry fee.
type Tier int

const (
	// TierFree covers free-entry tournaments.
	TierFree Tier = iota
	// TierLow covers fees up to and including 1 whole unit.
	TierLow
	// TierMedium covers fees above 1 and up to and including 10 whole units.
	TierMedium
	// TierHigh covers fees above 10 whole units.
	TierHigh
)

// Multipliers are expressed as halves so every table value stays in exact
// integer arithmetic: x1.0, x1.5, x2.0, x3.0.
var tierNumerators = [...]int64{TierFree: 2, TierLow: 3, TierMedium: 4, TierHigh: 6}

// StakeTier maps an entry fee in base units to its tier.
func StakeTier(entryFee int64) Tier {
	switch {
	case entryFee <= 0:
		return TierFree
	case entryFee <= CurrencyUnit:
		return TierLow
	case entryFee <= 10*CurrencyUnit:
		return TierMedium
	default:
		return TierHigh
	}
}

// Apply scales points by the tier multiplier.
func (t Tier) Apply(points int64) int64 {
	return points * tierNumerators[t] / 2
}

// Table holds the constants of one emission policy.
type Table struct {
	// FirstPlace, TopThree and Participation are the base amounts by
	// placement. Participation is flat: it is never tier-multiplied.
	FirstPlace    int64
	TopThree      int64
	Participation int64
	// StreakStep is the bonus granted per point of win streak beyond
	// three consecutive wins. The bonus is added after the multiplier
	// and is never multiplied itself.
	StreakStep int64
}

// streakFloor is the streak length at which the bonus starts paying.
const streakFloor = 4

// PassportTable is the composite-score policy.
func PassportTable() Table {
	return Table{FirstPlace: 100, TopThree: 50, Participation: 10, StreakStep: 10}
}

// RewardTable is the token-emission policy, scaled by the token unit.
func RewardTable(tokenUnit int64) Table {
	return Table{
		FirstPlace:    50 * tokenUnit,
		TopThree:      25 * tokenUnit,
		Participation: 5 * tokenUnit,
		StreakStep:    10 * tokenUnit,
	}
}

// StreakBonus returns the bonus for a current win streak. No bonus accrues on
// the first three consecutive wins; the fourth pays one step, the fifth two,
// and so on.
func (tb Table) StreakBonus(streak int) int64 {
	if streak < streakFloor {
		return 0
	}
	return tb.StreakStep * int64(streak-(streakFloor-1))
}

// Award computes the amount earned for a single tournament result.
// Placement 1 earns FirstPlace, 2 and 3 earn TopThree, anything else earns
// the flat Participation amount. The stake-tier multiplier applies to the
// placement amounts only; the streak bonus applies only to a first-place
// finish and is added unmultiplied.
func (tb Table) Award(placement int, entryFee int64, streak int) int64 {
	tier := StakeTier(entryFee)
	switch placement {
	case 1:
		return tier.Apply(tb.FirstPlace) + tb.StreakBonus(streak)
	case 2, 3:
		return tier.Apply(tb.TopThree)
	default:
		return tb.Participation
	}
}
