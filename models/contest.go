package models

import (
	"time"

	"fitpledge/apperrors"

	"github.com/google/uuid"
)

// ContestStatus represents the state of a contest
type ContestStatus string

const (
	ContestStatusPending   ContestStatus = "pending"
	ContestStatusActive    ContestStatus = "active"
	ContestStatusCancelled ContestStatus = "cancelled"
	ContestStatusCompleted ContestStatus = "completed"
)

// MemberStatus represents a member's investment sub-record state
type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusInvested MemberStatus = "invested"
	MemberStatusDeclined MemberStatus = "declined"
	MemberStatusRefunded MemberStatus = "refunded"
	MemberStatusPaidOut  MemberStatus = "paid_out"
)

// PayoutScheme decides how a completed contest's pot is split
type PayoutScheme string

const (
	PayoutSchemePodium  PayoutScheme = "podium"
	PayoutSchemeProrate PayoutScheme = "prorate"
)

// Contest is a multi-party pledge pool that activates once every member has invested
type Contest struct {
	ID                    uuid.UUID     `db:"id"`
	Name                  string        `db:"name"`
	OrganizerID           string        `db:"organizer_id"`
	Status                ContestStatus `db:"status"`
	AmountPerMember       int64         `db:"amount_per_member"`
	InvestedParticipants  int           `db:"invested_participants"`
	TotalParticipants     int           `db:"total_participants"`
	TotalPot              int64         `db:"total_pot"`
	ActivityType          ActivityType  `db:"activity_type"`
	MinDistanceMiles      float64       `db:"min_distance_miles"`
	MaxPaceMinutesPerMile float64       `db:"max_pace_minutes_per_mile"`
	RequiredWorkouts      int           `db:"required_workouts"`
	StartsAt              time.Time     `db:"starts_at"`
	EndsAt                time.Time     `db:"ends_at"`
	PayoutScheme          PayoutScheme  `db:"payout_scheme"`
	PodiumSplits          []int         `db:"podium_splits"`
	CancelReason          *string       `db:"cancel_reason"`
	CancelledAt           *time.Time    `db:"cancelled_at"`
	CompletedAt           *time.Time    `db:"completed_at"`
	CreatedAt             time.Time     `db:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at"`
}

// ContestMember is one member's investment sub-record
type ContestMember struct {
	ContestID         uuid.UUID    `db:"contest_id"`
	UserID            string       `db:"user_id"`
	JoinOrder         int          `db:"join_order"`
	Status            MemberStatus `db:"status"`
	Amount            int64        `db:"amount"`
	CompletedWorkouts int          `db:"completed_workouts"`
	RequirementMetAt  *time.Time   `db:"requirement_met_at"`
	PayoutAmount      *int64       `db:"payout_amount"`
	InvestedAt        *time.Time   `db:"invested_at"`
	RespondedAt       *time.Time   `db:"responded_at"`
	SettledAt         *time.Time   `db:"settled_at"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

// ContestDetail combines a contest with its member sub-records
type ContestDetail struct {
	Contest *Contest
	Members []*ContestMember
}

// ContestRules are the organizer-chosen terms of a contest
type ContestRules struct {
	ActivityType          ActivityType
	MinDistanceMiles      float64
	MaxPaceMinutesPerMile float64
	RequiredWorkouts      int
	StartsAt              time.Time
	EndsAt                time.Time
	PayoutScheme          PayoutScheme
	PodiumSplits          []int
}

// Validate rejects contest rows that break the pot and scheme invariants
func (c *Contest) Validate() error {
	if c.ID == uuid.Nil {
		return apperrors.DataIntegrity("contest row has no id")
	}
	switch c.Status {
	case ContestStatusPending, ContestStatusActive, ContestStatusCancelled, ContestStatusCompleted:
	default:
		return apperrors.DataIntegrity("contest %s has unknown status %q", c.ID, c.Status)
	}
	if c.AmountPerMember <= 0 || c.RequiredWorkouts <= 0 {
		return apperrors.DataIntegrity("contest %s has non-positive stake %d or requirement %d", c.ID, c.AmountPerMember, c.RequiredWorkouts)
	}
	if c.InvestedParticipants < 0 || c.InvestedParticipants > c.TotalParticipants {
		return apperrors.DataIntegrity("contest %s has %d invested of %d participants", c.ID, c.InvestedParticipants, c.TotalParticipants)
	}
	if c.TotalPot != int64(c.InvestedParticipants)*c.AmountPerMember {
		return apperrors.DataIntegrity("contest %s pot %d != %d invested x %d", c.ID, c.TotalPot, c.InvestedParticipants, c.AmountPerMember)
	}
	if !c.EndsAt.After(c.StartsAt) {
		return apperrors.DataIntegrity("contest %s ends at %s, not after its start %s", c.ID, c.EndsAt, c.StartsAt)
	}

	switch c.PayoutScheme {
	case PayoutSchemePodium:
		if len(c.PodiumSplits) == 0 || len(c.PodiumSplits) > 3 {
			return apperrors.DataIntegrity("contest %s has %d podium splits", c.ID, len(c.PodiumSplits))
		}
		sum := 0
		for _, s := range c.PodiumSplits {
			if s <= 0 {
				return apperrors.DataIntegrity("contest %s has non-positive podium split %d", c.ID, s)
			}
			sum += s
		}
		if sum != 100 {
			return apperrors.DataIntegrity("contest %s podium splits sum to %d", c.ID, sum)
		}
	case PayoutSchemeProrate:
		if len(c.PodiumSplits) != 0 {
			return apperrors.DataIntegrity("prorate contest %s carries podium splits", c.ID)
		}
	default:
		return apperrors.DataIntegrity("contest %s has unknown payout scheme %q", c.ID, c.PayoutScheme)
	}
	return nil
}

// Validate rejects member rows with unknown states or negative amounts
func (m *ContestMember) Validate() error {
	if m.UserID == "" {
		return apperrors.DataIntegrity("member row of contest %s has empty user id", m.ContestID)
	}
	switch m.Status {
	case MemberStatusPending, MemberStatusInvested, MemberStatusDeclined, MemberStatusRefunded, MemberStatusPaidOut:
	default:
		return apperrors.DataIntegrity("member %s of contest %s has unknown status %q", m.UserID, m.ContestID, m.Status)
	}
	if m.Amount <= 0 {
		return apperrors.DataIntegrity("member %s of contest %s has non-positive stake %d", m.UserID, m.ContestID, m.Amount)
	}
	if m.CompletedWorkouts < 0 {
		return apperrors.DataIntegrity("member %s of contest %s has negative workout count", m.UserID, m.ContestID)
	}
	if m.PayoutAmount != nil && *m.PayoutAmount < 0 {
		return apperrors.DataIntegrity("member %s of contest %s has negative payout %d", m.UserID, m.ContestID, *m.PayoutAmount)
	}
	return nil
}

// IsPending checks if the contest is still collecting investments
func (c *Contest) IsPending() bool {
	return c.Status == ContestStatusPending
}

// IsActive checks if the contest is running
func (c *Contest) IsActive() bool {
	return c.Status == ContestStatusActive
}

// AllInvested reports whether every member has funded the pot
func (c *Contest) AllInvested() bool {
	return c.TotalParticipants > 0 && c.InvestedParticipants == c.TotalParticipants
}

// IsOrganizer checks if userID organized the contest
func (c *Contest) IsOrganizer(userID string) bool {
	return c.OrganizerID == userID
}

// InWindow reports whether t falls in [StartsAt, EndsAt)
func (c *Contest) InWindow(t time.Time) bool {
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

// Member returns the sub-record for userID, or nil
func (d *ContestDetail) Member(userID string) *ContestMember {
	for _, m := range d.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// MembersWithStatus returns the members currently in status
func (d *ContestDetail) MembersWithStatus(status MemberStatus) []*ContestMember {
	var out []*ContestMember
	for _, m := range d.Members {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

// InvestedPot sums the stakes of members whose money is held in the pot
func (d *ContestDetail) InvestedPot() int64 {
	var sum int64
	for _, m := range d.Members {
		if m.Status == MemberStatusInvested {
			sum += m.Amount
		}
	}
	return sum
}

// CancelResult summarises a cancellation and its refund pass
type CancelResult struct {
	Contest         *Contest
	RefundedMembers int
	TotalRefunded   int64
	PendingRefunds  int
}

// CompletionResult summarises a contest payout pass
type CompletionResult struct {
	Contest        *Contest
	PaidMembers    int
	TotalPaid      int64
	PendingPayouts int
	Payouts        map[string]int64
}
