package httpapi

import (
	"net/http"

	"fitpledge/apperrors"
	"fitpledge/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *handlers) createCommitment(c *gin.Context) {
	var req createCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	period, err := models.ParsePeriod(req.Period)
	if err != nil {
		badRequest(c, err)
		return
	}

	commitment, err := h.Commitments.CreateCommitment(c.Request.Context(), callerID(c), req.Amount, req.WorkoutCount, period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCommitmentResponse(commitment))
}

func (h *handlers) listCommitments(c *gin.Context) {
	commitments, err := h.Commitments.ListCommitments(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commitments": toCommitmentsResponse(commitments)})
}

func (h *handlers) getCommitment(c *gin.Context) {
	commitment, ok := h.ownedCommitment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCommitmentResponse(commitment))
}

func (h *handlers) settleCommitment(c *gin.Context) {
	commitment, ok := h.ownedCommitment(c)
	if !ok {
		return
	}

	settled, err := h.Commitments.Settle(c.Request.Context(), commitment.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCommitmentResponse(settled))
}

// ownedCommitment loads the commitment named in the path and checks the caller owns it
func (h *handlers) ownedCommitment(c *gin.Context) (*models.Commitment, bool) {
	id, err := pathID(c)
	if err != nil {
		badRequest(c, err)
		return nil, false
	}

	commitment, err := h.Commitments.GetCommitment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if commitment.UserID != callerID(c) {
		respondError(c, apperrors.Unauthorized("commitment %s belongs to another user", id))
		return nil, false
	}
	return commitment, true
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid id %q", c.Param("id"))
	}
	return id, nil
}
