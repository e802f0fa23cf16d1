package models

import (
	"fmt"
	"time"

	"fitpledge/apperrors"

	"github.com/google/uuid"
)

// CommitmentStatus represents the state of a personal commitment
type CommitmentStatus string

const (
	CommitmentStatusOpen    CommitmentStatus = "open"
	CommitmentStatusSettled CommitmentStatus = "settled"
)

// Period is a calendar month in UTC
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a "YYYY-MM" string
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY-MM", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start is the first instant of the period
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Commitment is a personal pledge of money against a number of qualifying workouts in a month
type Commitment struct {
	ID                uuid.UUID        `db:"id"`
	UserID            string           `db:"user_id"`
	Amount            int64            `db:"amount"`
	WorkoutCount      int              `db:"workout_count"`
	BonusRateBps      int64            `db:"bonus_rate_bps"`
	BonusSlots        int              `db:"bonus_slots"`
	PeriodStart       time.Time        `db:"period_start"`
	PeriodEnd         time.Time        `db:"period_end"`
	CompletedWorkouts int              `db:"completed_workouts"`
	Status            CommitmentStatus `db:"status"`
	PrincipalReturned *int64           `db:"principal_returned"`
	BonusPaid         *int64           `db:"bonus_paid"`
	Forfeited         *int64           `db:"forfeited"`
	SettledAt         *time.Time       `db:"settled_at"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

// Validate rejects commitment rows whose settlement does not account for the principal
func (c *Commitment) Validate() error {
	if c.ID == uuid.Nil || c.UserID == "" {
		return apperrors.DataIntegrity("commitment row has no id or user id")
	}
	if c.Amount <= 0 || c.WorkoutCount <= 0 {
		return apperrors.DataIntegrity("commitment %s has non-positive amount %d or workout count %d", c.ID, c.Amount, c.WorkoutCount)
	}
	if c.CompletedWorkouts < 0 || c.BonusSlots < 0 || c.BonusRateBps < 0 {
		return apperrors.DataIntegrity("commitment %s has negative progress or bonus terms", c.ID)
	}
	if !c.PeriodEnd.After(c.PeriodStart) {
		return apperrors.DataIntegrity("commitment %s period ends at %s, not after %s", c.ID, c.PeriodEnd, c.PeriodStart)
	}

	switch c.Status {
	case CommitmentStatusOpen:
		return nil
	case CommitmentStatusSettled:
	default:
		return apperrors.DataIntegrity("commitment %s has unknown status %q", c.ID, c.Status)
	}

	if c.PrincipalReturned == nil || c.BonusPaid == nil || c.Forfeited == nil || c.SettledAt == nil {
		return apperrors.DataIntegrity("settled commitment %s is missing its settlement record", c.ID)
	}
	if *c.PrincipalReturned < 0 || *c.BonusPaid < 0 || *c.Forfeited < 0 {
		return apperrors.DataIntegrity("settled commitment %s has a negative settlement amount", c.ID)
	}
	if *c.PrincipalReturned+*c.Forfeited != c.Amount {
		return apperrors.DataIntegrity("commitment %s returned %d and forfeited %d of %d", c.ID, *c.PrincipalReturned, *c.Forfeited, c.Amount)
	}
	return nil
}

// IsOpen checks if the commitment still accepts workouts
func (c *Commitment) IsOpen() bool {
	return c.Status == CommitmentStatusOpen
}

// Period returns the calendar month of the commitment
func (c *Commitment) Period() Period {
	return PeriodOf(c.PeriodStart)
}

// InPeriod reports whether t falls in [PeriodStart, PeriodEnd)
func (c *Commitment) InPeriod(t time.Time) bool {
	return !t.Before(c.PeriodStart) && t.Before(c.PeriodEnd)
}

// TargetReached reports whether every required workout has been completed
func (c *Commitment) TargetReached() bool {
	return c.CompletedWorkouts >= c.WorkoutCount
}

// CanSettle reports whether settlement is allowed at now
func (c *Commitment) CanSettle(now time.Time) bool {
	return c.IsOpen() && (c.TargetReached() || !now.Before(c.PeriodEnd))
}
