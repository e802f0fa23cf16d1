// Package payout holds the settlement math for commitments and contests.
package payout

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BonusTier is the bonus schedule for a required workout count
type BonusTier struct {
	WorkoutCount    int
	RateBasisPoints int64
	BonusSlots      int
}

// RegularSlots is the number of slots paid from principal
func (t BonusTier) RegularSlots() int {
	return t.WorkoutCount - t.BonusSlots
}

// Rate is the bonus rate as a fraction
func (t BonusTier) Rate() decimal.Decimal {
	return decimal.New(t.RateBasisPoints, -4)
}

var bonusTiers = map[int]BonusTier{
	4:  {WorkoutCount: 4, RateBasisPoints: 0, BonusSlots: 0},
	8:  {WorkoutCount: 8, RateBasisPoints: 1000, BonusSlots: 1},
	12: {WorkoutCount: 12, RateBasisPoints: 2000, BonusSlots: 2},
	16: {WorkoutCount: 16, RateBasisPoints: 2500, BonusSlots: 3},
}

// TierFor returns the bonus tier for a workout count
func TierFor(workoutCount int) (BonusTier, error) {
	tier, ok := bonusTiers[workoutCount]
	if !ok {
		return BonusTier{}, fmt.Errorf("unsupported workout count %d: must be 4, 8, 12 or 16", workoutCount)
	}
	return tier, nil
}

// SupportedWorkoutCounts lists the workout counts that have a bonus tier
func SupportedWorkoutCounts() []int {
	return []int{4, 8, 12, 16}
}

// SlotValues returns the unrounded value of one regular slot and one bonus slot
func SlotValues(amount int64, tier BonusTier) (regular, bonus decimal.Decimal) {
	principal := decimal.NewFromInt(amount)
	regular = principal.Div(decimal.NewFromInt(int64(tier.RegularSlots())))
	if tier.BonusSlots > 0 {
		bonus = principal.Mul(tier.Rate()).Div(decimal.NewFromInt(int64(tier.BonusSlots)))
	}
	return regular, bonus
}

// CommitmentPayout is the split of a settled commitment, in minor units
type CommitmentPayout struct {
	Principal int64
	Bonus     int64
	Forfeited int64
}

// Earned is what the user receives back into free balance
func (p CommitmentPayout) Earned() int64 {
	return p.Principal + p.Bonus
}

// CalculateCommitmentPayout computes the earned amount for completed workouts. Slots are
// consumed regular first; bonus slots only count once every regular slot is done. The sum is
// rounded once, half away from zero, so finishing the regular slots returns exactly amount.
func CalculateCommitmentPayout(amount int64, workoutCount, completed int) (CommitmentPayout, error) {
	if amount <= 0 {
		return CommitmentPayout{}, fmt.Errorf("amount must be positive")
	}
	if completed < 0 {
		return CommitmentPayout{}, fmt.Errorf("completed workouts cannot be negative")
	}
	tier, err := TierFor(workoutCount)
	if err != nil {
		return CommitmentPayout{}, err
	}

	done := min(completed, tier.WorkoutCount)
	regularDone := min(done, tier.RegularSlots())
	bonusDone := done - regularDone

	regularValue, bonusValue := SlotValues(amount, tier)

	principal := regularValue.Mul(decimal.NewFromInt(int64(regularDone))).Round(0).IntPart()
	if principal > amount {
		principal = amount
	}
	var bonus int64
	if bonusDone > 0 {
		bonus = bonusValue.Mul(decimal.NewFromInt(int64(bonusDone))).Round(0).IntPart()
	}

	return CommitmentPayout{
		Principal: principal,
		Bonus:     bonus,
		Forfeited: amount - principal,
	}, nil
}

// Format renders minor units as a decimal amount, e.g. 11000 -> "110.00"
func Format(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
