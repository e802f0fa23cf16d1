package payout

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPodiumSplits are the first, second and third place percentages
var DefaultPodiumSplits = []int{60, 30, 10}

// MemberResult is one invested member's standing when a contest ends
type MemberResult struct {
	UserID           string
	Stake            int64
	Completed        int
	RequirementMetAt *time.Time
	JoinOrder        int
}

// ValidatePodiumSplits checks that splits are one to three positive percentages summing to 100
func ValidatePodiumSplits(splits []int) error {
	if len(splits) == 0 || len(splits) > 3 {
		return fmt.Errorf("podium needs between 1 and 3 splits, got %d", len(splits))
	}
	sum := 0
	for _, s := range splits {
		if s <= 0 {
			return fmt.Errorf("podium splits must be positive")
		}
		sum += s
	}
	if sum != 100 {
		return fmt.Errorf("podium splits must sum to 100, got %d", sum)
	}
	return nil
}

// Refunds returns every member's stake unchanged
func Refunds(members []MemberResult) map[string]int64 {
	out := make(map[string]int64, len(members))
	for _, m := range members {
		out[m.UserID] = m.Stake
	}
	return out
}

func potOf(members []MemberResult) int64 {
	var pot int64
	for _, m := range members {
		pot += m.Stake
	}
	return pot
}

// Prorate splits the pot in proportion to min(completed, required). Rounding uses the
// largest-remainder method so the shares add up to the pot exactly. If nobody met the
// requirement every stake is refunded.
func Prorate(members []MemberResult, required int) map[string]int64 {
	pot := potOf(members)
	weights := make([]int64, len(members))
	var totalWeight int64
	finished := false
	for i, m := range members {
		w := int64(max(min(m.Completed, required), 0))
		weights[i] = w
		totalWeight += w
		if m.Completed >= required {
			finished = true
		}
	}
	if !finished || totalWeight == 0 {
		return Refunds(members)
	}
	return largestRemainder(members, pot, weights, totalWeight)
}

// Podium pays finishers by the order in which they met the requirement. Unfilled places
// are dropped and the remaining splits renormalised; the rounding remainder goes to first
// place. If nobody finished every stake is refunded.
func Podium(members []MemberResult, required int, splits []int) (map[string]int64, error) {
	if err := ValidatePodiumSplits(splits); err != nil {
		return nil, err
	}
	pot := potOf(members)

	var finishers []MemberResult
	for _, m := range members {
		if m.Completed >= required && m.RequirementMetAt != nil {
			finishers = append(finishers, m)
		}
	}
	if len(finishers) == 0 {
		return Refunds(members), nil
	}

	sort.SliceStable(finishers, func(i, j int) bool {
		a, b := finishers[i], finishers[j]
		if !a.RequirementMetAt.Equal(*b.RequirementMetAt) {
			return a.RequirementMetAt.Before(*b.RequirementMetAt)
		}
		if a.Completed != b.Completed {
			return a.Completed > b.Completed
		}
		return a.JoinOrder < b.JoinOrder
	})

	places := min(len(finishers), len(splits))
	used := splits[:places]
	splitTotal := 0
	for _, s := range used {
		splitTotal += s
	}

	out := make(map[string]int64, len(members))
	for _, m := range members {
		out[m.UserID] = 0
	}

	var paid int64
	potDec := decimal.NewFromInt(pot)
	for i := 0; i < places; i++ {
		share := potDec.Mul(decimal.NewFromInt(int64(used[i]))).
			Div(decimal.NewFromInt(int64(splitTotal))).
			Floor().IntPart()
		out[finishers[i].UserID] = share
		paid += share
	}
	out[finishers[0].UserID] += pot - paid

	return out, nil
}

func largestRemainder(members []MemberResult, pot int64, weights []int64, totalWeight int64) map[string]int64 {
	type remainder struct {
		index int
		frac  decimal.Decimal
	}

	out := make(map[string]int64, len(members))
	remainders := make([]remainder, 0, len(members))
	potDec := decimal.NewFromInt(pot)
	totalDec := decimal.NewFromInt(totalWeight)

	var paid int64
	for i, m := range members {
		exact := potDec.Mul(decimal.NewFromInt(weights[i])).Div(totalDec)
		floor := exact.Floor()
		share := floor.IntPart()
		out[m.UserID] = share
		paid += share
		if weights[i] > 0 {
			remainders = append(remainders, remainder{index: i, frac: exact.Sub(floor)})
		}
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		c := remainders[i].frac.Cmp(remainders[j].frac)
		if c != 0 {
			return c > 0
		}
		return members[remainders[i].index].JoinOrder < members[remainders[j].index].JoinOrder
	})

	for left, k := pot-paid, 0; left > 0 && len(remainders) > 0; left, k = left-1, k+1 {
		out[members[remainders[k%len(remainders)].index].UserID]++
	}

	return out
}
