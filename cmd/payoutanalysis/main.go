// Standalone payout analysis tool. Simulates commitment and contest settlements with the same
// payout code the service uses and checks that no settlement creates or loses money.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"fitpledge/payout"
)

func main() {
	trials := flag.Int("trials", 100000, "settlements to simulate per scenario")
	amount := flag.Int64("amount", 10000, "commitment amount and contest stake, in minor units")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	fmt.Println("=== Commitment Payout Table ===")
	for _, count := range payout.SupportedWorkoutCounts() {
		commitmentTable(*amount, count)
	}

	fmt.Println("\n=== Commitment Settlement Simulation ===")
	for _, count := range payout.SupportedWorkoutCounts() {
		simulateCommitments(rng, *amount, count, *trials)
	}

	fmt.Println("\n=== Contest Settlement Simulation ===")
	for _, members := range []int{2, 3, 5, 10} {
		simulateContests(rng, *amount, members, *trials)
	}
}

// commitmentTable prints what a user receives for every possible number of completed workouts
func commitmentTable(amount int64, workoutCount int) {
	tier, _ := payout.TierFor(workoutCount)
	fmt.Printf("\n%d workouts (bonus %s%% over %d slots)\n", workoutCount, tier.Rate().Shift(2).String(), tier.BonusSlots)
	for done := 0; done <= workoutCount; done++ {
		p, err := payout.CalculateCommitmentPayout(amount, workoutCount, done)
		if err != nil {
			fmt.Printf("  %2d: error: %v\n", done, err)
			continue
		}
		bar := strings.Repeat("█", int(p.Earned()*30/amount))
		fmt.Printf("  %2d: principal %10s  bonus %8s  forfeited %10s  %s\n",
			done, payout.Format(p.Principal), payout.Format(p.Bonus), payout.Format(p.Forfeited), bar)
	}
}

// simulateCommitments settles commitments with uniformly random completion and checks
// that principal and forfeit always add up to the pledged amount
func simulateCommitments(rng *rand.Rand, amount int64, workoutCount, trials int) {
	var forfeited, bonus int64
	violations := 0

	for i := 0; i < trials; i++ {
		done := rng.Intn(workoutCount + 1)
		p, err := payout.CalculateCommitmentPayout(amount, workoutCount, done)
		if err != nil || p.Principal+p.Forfeited != amount || p.Principal < 0 || p.Bonus < 0 {
			violations++
			continue
		}
		forfeited += p.Forfeited
		bonus += p.Bonus
	}

	net := forfeited - bonus
	fmt.Printf("%2d workouts | trials %d | forfeited %s | bonus paid %s | platform net %s per commitment",
		workoutCount, trials, payout.Format(forfeited), payout.Format(bonus), payout.Format(net/int64(trials)))
	printVerdict(violations)
}

// simulateContests pays out contests with random progress under both schemes and checks
// that the shares always add up to the pot
func simulateContests(rng *rand.Rand, stake int64, members, trials int) {
	const required = 3
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	violations := 0
	refunded := 0

	for i := 0; i < trials; i++ {
		results := make([]payout.MemberResult, members)
		for m := range results {
			completed := rng.Intn(required + 2)
			results[m] = payout.MemberResult{
				UserID:    fmt.Sprintf("member-%d", m),
				Stake:     stake,
				Completed: completed,
				JoinOrder: m,
			}
			if completed >= required {
				metAt := start.Add(time.Duration(rng.Intn(7*24)) * time.Hour)
				results[m].RequirementMetAt = &metAt
			}
		}

		podium, err := payout.Podium(results, required, payout.DefaultPodiumSplits)
		if err != nil || !conserves(podium, stake*int64(members)) {
			violations++
		}
		prorate := payout.Prorate(results, required)
		if !conserves(prorate, stake*int64(members)) {
			violations++
		}
		if podium[results[0].UserID] == stake && isRefund(podium, stake) {
			refunded++
		}
	}

	fmt.Printf("%2d members | trials %d | refunded %.2f%%", members, trials, float64(refunded)*100/float64(trials))
	printVerdict(violations)
}

func conserves(shares map[string]int64, pot int64) bool {
	var sum int64
	for _, s := range shares {
		if s < 0 {
			return false
		}
		sum += s
	}
	return sum == pot
}

func isRefund(shares map[string]int64, stake int64) bool {
	for _, s := range shares {
		if s != stake {
			return false
		}
	}
	return true
}

func printVerdict(violations int) {
	if violations == 0 {
		fmt.Println(" ✓ PASS")
	} else {
		fmt.Printf(" ✗ FAIL (%d violations)\n", violations)
	}
}
