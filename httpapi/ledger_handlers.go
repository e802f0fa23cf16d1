package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"fitpledge/apperrors"
	"fitpledge/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const balanceStreamBuffer = 16

func (h *handlers) getBalances(c *gin.Context) {
	balances, err := h.Ledger.GetBalances(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBalancesResponse(*balances))
}

// streamBalances pushes the caller's balances as server-sent events: the current snapshot first,
// then one event per committed mutation. Slow clients lose intermediate updates; every event
// carries the ledger version so a client can tell.
func (h *handlers) streamBalances(c *gin.Context) {
	ctx := c.Request.Context()
	userID := callerID(c)

	updates := make(chan models.Balances, balanceStreamBuffer)
	unsubscribe := h.Ledger.Subscribe(userID, func(b models.Balances) {
		select {
		case updates <- b:
		default:
			log.WithFields(log.Fields{
				"userID":  userID,
				"version": b.Version,
			}).Warn("Dropping balance update for slow stream client")
		}
	})
	defer unsubscribe()

	snapshot, err := h.Ledger.GetBalances(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("balance", toBalancesResponse(*snapshot))
	c.Writer.Flush()

	// Updates can arrive out of order; only ever move the client forward.
	lastVersion := snapshot.Version
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case b := <-updates:
			if b.Version <= lastVersion {
				return true
			}
			lastVersion = b.Version
			c.SSEvent("balance", toBalancesResponse(b))
			return true
		}
	})
}

func (h *handlers) history(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	entries, err := h.Ledger.History(c.Request.Context(), callerID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": toHistoryResponse(entries)})
}

func (h *handlers) requestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	withdrawal, err := h.Payments.RequestWithdrawal(c.Request.Context(), callerID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toWithdrawalResponse(withdrawal))
}

func (h *handlers) listWithdrawals(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	withdrawals, err := h.Payments.ListWithdrawals(c.Request.Context(), callerID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]withdrawalResponse, 0, len(withdrawals))
	for _, w := range withdrawals {
		out = append(out, toWithdrawalResponse(w))
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": out})
}

// queryLimit parses ?limit=; zero means the service default
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.Validation("limit must be a non-negative integer, got %q", raw)
	}
	return limit, nil
}
