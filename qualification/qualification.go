// Package qualification decides whether a workout counts toward a pledge.
//
// Feed records carry meters and seconds while rules are written in miles and minutes per
// mile, so every comparison goes through the conversions in this file.
package qualification

import (
	"fitpledge/models"
)

const (
	// MetersPerMile is the international mile
	MetersPerMile = 1609.344

	// tolerance absorbs floating-point error so exact thresholds qualify
	tolerance = 1e-6
)

// Rule is the minimum a workout of ActivityType must achieve
type Rule struct {
	ActivityType          models.ActivityType
	MinDistanceMiles      float64
	MaxPaceMinutesPerMile float64
}

// DefaultRules are the thresholds used for personal commitments
func DefaultRules() []Rule {
	return []Rule{
		{ActivityType: models.ActivityRunning, MinDistanceMiles: 2, MaxPaceMinutesPerMile: 12},
		{ActivityType: models.ActivityCycling, MinDistanceMiles: 6, MaxPaceMinutesPerMile: 4},
	}
}

// DistanceMiles converts the workout distance to miles
func DistanceMiles(w models.Workout) float64 {
	return w.DistanceMeters / MetersPerMile
}

// PaceMinutesPerMile derives the pace from duration and distance, falling back to the
// feed's seconds-per-meter pace. ok is false when neither gives a usable value.
func PaceMinutesPerMile(w models.Workout) (pace float64, ok bool) {
	miles := DistanceMiles(w)
	if w.DurationSeconds > 0 && miles > 0 {
		return (w.DurationSeconds / 60) / miles, true
	}
	if w.PaceSecondsPerMeter > 0 {
		return w.PaceSecondsPerMeter * MetersPerMile / 60, true
	}
	return 0, false
}

// Qualifies reports whether w satisfies r
func Qualifies(w models.Workout, r Rule) bool {
	if w.ActivityType != r.ActivityType {
		return false
	}
	miles := DistanceMiles(w)
	if miles <= 0 || miles < r.MinDistanceMiles-tolerance {
		return false
	}
	pace, ok := PaceMinutesPerMile(w)
	if !ok || pace <= 0 {
		return false
	}
	return pace <= r.MaxPaceMinutesPerMile+tolerance
}

// QualifiesAny reports whether w satisfies at least one rule
func QualifiesAny(w models.Workout, rules []Rule) bool {
	for _, r := range rules {
		if Qualifies(w, r) {
			return true
		}
	}
	return false
}

// ContestRule builds the rule a contest's workouts are judged by
func ContestRule(c *models.Contest) Rule {
	return Rule{
		ActivityType:          c.ActivityType,
		MinDistanceMiles:      c.MinDistanceMiles,
		MaxPaceMinutesPerMile: c.MaxPaceMinutesPerMile,
	}
}
