package models

import (
	"strings"
	"time"

	"fitpledge/apperrors"
)

// ActivityType is the kind of exercise a workout records
type ActivityType string

const (
	ActivityRunning ActivityType = "running"
	ActivityCycling ActivityType = "cycling"
	ActivityWalking ActivityType = "walking"
	ActivityOther   ActivityType = "other"
)

// ParseActivityType normalises a feed activity name
func ParseActivityType(s string) ActivityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "run":
		return ActivityRunning
	case "cycling", "bike", "biking":
		return ActivityCycling
	case "walking", "walk":
		return ActivityWalking
	default:
		return ActivityOther
	}
}

// Workout is a workout record delivered by the workout feed. Distance is in meters,
// duration in seconds and pace, when present, in seconds per meter.
type Workout struct {
	ID                  string       `db:"id" json:"id"`
	UserID              string       `db:"user_id" json:"user_id"`
	ActivityType        ActivityType `db:"activity_type" json:"activity_type"`
	DistanceMeters      float64      `db:"distance_meters" json:"distance_meters"`
	DurationSeconds     float64      `db:"duration_seconds" json:"duration_seconds"`
	PaceSecondsPerMeter float64      `db:"pace_seconds_per_meter" json:"pace_seconds_per_meter"`
	PerformedAt         time.Time    `db:"performed_at" json:"performed_at"`
	ReceivedAt          time.Time    `db:"received_at" json:"-"`
}

// Validate rejects malformed feed records instead of defaulting missing fields
func (w *Workout) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return apperrors.Validation("workout id is required")
	}
	if strings.TrimSpace(w.UserID) == "" {
		return apperrors.Validation("workout %s has no user id", w.ID)
	}
	if w.ActivityType == "" {
		return apperrors.Validation("workout %s has no activity type", w.ID)
	}
	if w.DistanceMeters < 0 || w.DurationSeconds < 0 || w.PaceSecondsPerMeter < 0 {
		return apperrors.Validation("workout %s has negative distance, duration or pace", w.ID)
	}
	if w.PerformedAt.IsZero() {
		return apperrors.Validation("workout %s has no timestamp", w.ID)
	}
	return nil
}

// WorkoutIngestResult reports where an ingested workout was counted
type WorkoutIngestResult struct {
	Duplicate   bool     `json:"duplicate"`
	Commitments []string `json:"commitments"`
	Contests    []string `json:"contests"`
}
