package httpapi

import (
	"net/http"

	"fitpledge/apperrors"
	"fitpledge/models"

	"github.com/gin-gonic/gin"
)

// Webhook bodies are the same payloads the NATS envelopes carry

func (h *handlers) paymentConfirmed(c *gin.Context) {
	var event models.PaymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, apperrors.Validation("malformed payment event: %v", err))
		return
	}

	result, err := h.Payments.HandlePaymentConfirmed(c.Request.Context(), event)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"duplicate": result.Duplicate}
	if result.Balances != nil {
		body["balances"] = toBalancesResponse(*result.Balances)
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) withdrawalResult(c *gin.Context) {
	var result models.WithdrawalResult
	if err := c.ShouldBindJSON(&result); err != nil {
		badRequest(c, apperrors.Validation("malformed withdrawal result: %v", err))
		return
	}

	duplicate, err := h.Payments.HandleWithdrawalResult(c.Request.Context(), result)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicate": duplicate})
}

func (h *handlers) workoutIngested(c *gin.Context) {
	var workout models.Workout
	if err := c.ShouldBindJSON(&workout); err != nil {
		badRequest(c, apperrors.Validation("malformed workout: %v", err))
		return
	}

	result, err := h.Workouts.IngestWorkout(c.Request.Context(), workout)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
