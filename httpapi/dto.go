package httpapi

import (
	"time"

	"fitpledge/models"
	"fitpledge/payout"
)

// Requests

type withdrawalRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type createCommitmentRequest struct {
	Amount       int64  `json:"amount" binding:"required"`
	WorkoutCount int    `json:"workout_count" binding:"required"`
	Period       string `json:"period" binding:"required"`
}

type createContestRequest struct {
	Name                  string    `json:"name" binding:"required"`
	Members               []string  `json:"members"`
	AmountPerMember       int64     `json:"amount_per_member" binding:"required"`
	ActivityType          string    `json:"activity_type" binding:"required"`
	MinDistanceMiles      float64   `json:"min_distance_miles" binding:"required"`
	MaxPaceMinutesPerMile float64   `json:"max_pace_minutes_per_mile" binding:"required"`
	RequiredWorkouts      int       `json:"required_workouts" binding:"required"`
	StartsAt              time.Time `json:"starts_at" binding:"required"`
	EndsAt                time.Time `json:"ends_at" binding:"required"`
	PayoutScheme          string    `json:"payout_scheme"`
	PodiumSplits          []int     `json:"podium_splits"`
}

func (r createContestRequest) rules() models.ContestRules {
	return models.ContestRules{
		ActivityType:          models.ParseActivityType(r.ActivityType),
		MinDistanceMiles:      r.MinDistanceMiles,
		MaxPaceMinutesPerMile: r.MaxPaceMinutesPerMile,
		RequiredWorkouts:      r.RequiredWorkouts,
		StartsAt:              r.StartsAt.UTC(),
		EndsAt:                r.EndsAt.UTC(),
		PayoutScheme:          models.PayoutScheme(r.PayoutScheme),
		PodiumSplits:          r.PodiumSplits,
	}
}

// Responses

type balancesResponse struct {
	UserID   string `json:"user_id"`
	Total    int64  `json:"total"`
	Free     int64  `json:"free"`
	Invested int64  `json:"invested"`
	Version  int64  `json:"version"`
	Display  struct {
		Total    string `json:"total"`
		Free     string `json:"free"`
		Invested string `json:"invested"`
	} `json:"display"`
}

func toBalancesResponse(b models.Balances) balancesResponse {
	resp := balancesResponse{
		UserID:   b.UserID,
		Total:    b.Total,
		Free:     b.Free,
		Invested: b.Invested,
		Version:  b.Version,
	}
	resp.Display.Total = payout.Format(b.Total)
	resp.Display.Free = payout.Format(b.Free)
	resp.Display.Invested = payout.Format(b.Invested)
	return resp
}

type historyEntryResponse struct {
	ID              int64               `json:"id"`
	TransactionType string              `json:"transaction_type"`
	ChangeAmount    int64               `json:"change_amount"`
	FreeBefore      int64               `json:"free_before"`
	FreeAfter       int64               `json:"free_after"`
	InvestedBefore  int64               `json:"invested_before"`
	InvestedAfter   int64               `json:"invested_after"`
	RelatedID       *string             `json:"related_id,omitempty"`
	RelatedType     *models.RelatedType `json:"related_type,omitempty"`
	Metadata        map[string]any      `json:"metadata,omitempty"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
}

func toHistoryResponse(entries []*models.BalanceHistory) []historyEntryResponse {
	out := make([]historyEntryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, historyEntryResponse{
			ID:              h.ID,
			TransactionType: string(h.TransactionType),
			ChangeAmount:    h.ChangeAmount,
			FreeBefore:      h.FreeBefore,
			FreeAfter:       h.FreeAfter,
			InvestedBefore:  h.InvestedBefore,
			InvestedAfter:   h.InvestedAfter,
			RelatedID:       h.RelatedID,
			RelatedType:     h.RelatedType,
			Metadata:        h.TransactionMetadata,
			Version:         h.LedgerVersion,
			CreatedAt:       h.CreatedAt,
		})
	}
	return out
}

type withdrawalResponse struct {
	ID                string     `json:"id"`
	Amount            int64      `json:"amount"`
	Status            string     `json:"status"`
	TransferReference *string    `json:"transfer_reference,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

func toWithdrawalResponse(w *models.Withdrawal) withdrawalResponse {
	resp := withdrawalResponse{
		ID:                w.ID.String(),
		Amount:            w.Amount,
		Status:            string(w.Status),
		TransferReference: w.TransferReference,
		FailureReason:     w.FailureReason,
		CreatedAt:         w.CreatedAt,
	}
	if !w.UpdatedAt.IsZero() {
		updated := w.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

type commitmentResponse struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Amount            int64      `json:"amount"`
	WorkoutCount      int        `json:"workout_count"`
	BonusRateBps      int64      `json:"bonus_rate_bps"`
	BonusSlots        int        `json:"bonus_slots"`
	Period            string     `json:"period"`
	PeriodStart       time.Time  `json:"period_start"`
	PeriodEnd         time.Time  `json:"period_end"`
	CompletedWorkouts int        `json:"completed_workouts"`
	Status            string     `json:"status"`
	PrincipalReturned *int64     `json:"principal_returned,omitempty"`
	BonusPaid         *int64     `json:"bonus_paid,omitempty"`
	Forfeited         *int64     `json:"forfeited,omitempty"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
}

func toCommitmentResponse(c *models.Commitment) commitmentResponse {
	return commitmentResponse{
		ID:                c.ID.String(),
		UserID:            c.UserID,
		Amount:            c.Amount,
		WorkoutCount:      c.WorkoutCount,
		BonusRateBps:      c.BonusRateBps,
		BonusSlots:        c.BonusSlots,
		Period:            c.Period().String(),
		PeriodStart:       c.PeriodStart,
		PeriodEnd:         c.PeriodEnd,
		CompletedWorkouts: c.CompletedWorkouts,
		Status:            string(c.Status),
		PrincipalReturned: c.PrincipalReturned,
		BonusPaid:         c.BonusPaid,
		Forfeited:         c.Forfeited,
		SettledAt:         c.SettledAt,
	}
}

func toCommitmentsResponse(commitments []*models.Commitment) []commitmentResponse {
	out := make([]commitmentResponse, 0, len(commitments))
	for _, c := range commitments {
		out = append(out, toCommitmentResponse(c))
	}
	return out
}

type contestResponse struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	OrganizerID           string     `json:"organizer_id"`
	Status                string     `json:"status"`
	AmountPerMember       int64      `json:"amount_per_member"`
	InvestedParticipants  int        `json:"invested_participants"`
	TotalParticipants     int        `json:"total_participants"`
	TotalPot              int64      `json:"total_pot"`
	ActivityType          string     `json:"activity_type"`
	MinDistanceMiles      float64    `json:"min_distance_miles"`
	MaxPaceMinutesPerMile float64    `json:"max_pace_minutes_per_mile"`
	RequiredWorkouts      int        `json:"required_workouts"`
	StartsAt              time.Time  `json:"starts_at"`
	EndsAt                time.Time  `json:"ends_at"`
	PayoutScheme          string     `json:"payout_scheme"`
	PodiumSplits          []int      `json:"podium_splits,omitempty"`
	CancelReason          *string    `json:"cancel_reason,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

type memberResponse struct {
	UserID            string     `json:"user_id"`
	Status            string     `json:"status"`
	Amount            int64      `json:"amount"`
	CompletedWorkouts int        `json:"completed_workouts"`
	RequirementMetAt  *time.Time `json:"requirement_met_at,omitempty"`
	PayoutAmount      *int64     `json:"payout_amount,omitempty"`
	InvestedAt        *time.Time `json:"invested_at,omitempty"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
}

type contestDetailResponse struct {
	contestResponse
	Members []memberResponse `json:"members"`
}

func toContestResponse(c *models.Contest) contestResponse {
	return contestResponse{
		ID:                    c.ID.String(),
		Name:                  c.Name,
		OrganizerID:           c.OrganizerID,
		Status:                string(c.Status),
		AmountPerMember:       c.AmountPerMember,
		InvestedParticipants:  c.InvestedParticipants,
		TotalParticipants:     c.TotalParticipants,
		TotalPot:              c.TotalPot,
		ActivityType:          string(c.ActivityType),
		MinDistanceMiles:      c.MinDistanceMiles,
		MaxPaceMinutesPerMile: c.MaxPaceMinutesPerMile,
		RequiredWorkouts:      c.RequiredWorkouts,
		StartsAt:              c.StartsAt,
		EndsAt:                c.EndsAt,
		PayoutScheme:          string(c.PayoutScheme),
		PodiumSplits:          c.PodiumSplits,
		CancelReason:          c.CancelReason,
		CancelledAt:           c.CancelledAt,
		CompletedAt:           c.CompletedAt,
	}
}

func toContestsResponse(contests []*models.Contest) []contestResponse {
	out := make([]contestResponse, 0, len(contests))
	for _, c := range contests {
		out = append(out, toContestResponse(c))
	}
	return out
}

func toContestDetailResponse(d *models.ContestDetail) contestDetailResponse {
	resp := contestDetailResponse{
		contestResponse: toContestResponse(d.Contest),
		Members:         make([]memberResponse, 0, len(d.Members)),
	}
	for _, m := range d.Members {
		resp.Members = append(resp.Members, memberResponse{
			UserID:            m.UserID,
			Status:            string(m.Status),
			Amount:            m.Amount,
			CompletedWorkouts: m.CompletedWorkouts,
			RequirementMetAt:  m.RequirementMetAt,
			PayoutAmount:      m.PayoutAmount,
			InvestedAt:        m.InvestedAt,
			SettledAt:         m.SettledAt,
		})
	}
	return resp
}

type cancelResponse struct {
	Contest         contestResponse `json:"contest"`
	RefundedMembers int             `json:"refunded_members"`
	TotalRefunded   int64           `json:"total_refunded"`
	PendingRefunds  int             `json:"pending_refunds"`
}
