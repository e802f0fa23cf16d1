package httpapi

import (
	"net/http"

	"fitpledge/apperrors"

	"github.com/gin-gonic/gin"
)

func (h *handlers) createContest(c *gin.Context) {
	var req createContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	detail, err := h.Contests.CreateContest(c.Request.Context(), callerID(c), req.Name, req.Members, req.AmountPerMember, req.rules())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContestDetailResponse(detail))
}

func (h *handlers) listContests(c *gin.Context) {
	contests, err := h.Contests.ListContests(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contests": toContestsResponse(contests)})
}

// getContest is visible to the contest's members only
func (h *handlers) getContest(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	detail, err := h.Contests.GetContest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if detail.Member(callerID(c)) == nil {
		respondError(c, apperrors.Unauthorized("user is not a member of contest %s", id))
		return
	}
	c.JSON(http.StatusOK, toContestDetailResponse(detail))
}

func (h *handlers) invest(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	contest, err := h.Contests.Invest(c.Request.Context(), id, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContestResponse(contest))
}

func (h *handlers) decline(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	contest, err := h.Contests.Decline(c.Request.Context(), id, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContestResponse(contest))
}

func (h *handlers) cancel(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.Contests.Cancel(c.Request.Context(), id, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResponse{
		Contest:         toContestResponse(result.Contest),
		RefundedMembers: result.RefundedMembers,
		TotalRefunded:   result.TotalRefunded,
		PendingRefunds:  result.PendingRefunds,
	})
}
