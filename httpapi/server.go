// Package httpapi exposes the ledger, commitment and contest operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fitpledge/auth"
	"fitpledge/config"
	"fitpledge/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Services bundles the operations the HTTP API serves
type Services struct {
	Ledger      service.LedgerService
	Payments    service.PaymentService
	Commitments service.CommitmentService
	Contests    service.ContestService
	Workouts    service.WorkoutService
}

// Server is the HTTP front of the service
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

type handlers struct {
	Services
}

// NewServer builds the router. Every /v1 route requires a bearer token; webhook routes require
// the shared webhook secret.
func NewServer(cfg *config.Config, services Services, jwtManager *auth.JWTManager) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger())

	h := &handlers{Services: services}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1", JWTAuth(jwtManager))
	{
		v1.GET("/balances", h.getBalances)
		v1.GET("/balances/stream", h.streamBalances)
		v1.GET("/balances/history", h.history)

		v1.POST("/withdrawals", h.requestWithdrawal)
		v1.GET("/withdrawals", h.listWithdrawals)

		v1.POST("/commitments", h.createCommitment)
		v1.GET("/commitments", h.listCommitments)
		v1.GET("/commitments/:id", h.getCommitment)
		v1.POST("/commitments/:id/settle", h.settleCommitment)

		v1.POST("/contests", h.createContest)
		v1.GET("/contests", h.listContests)
		v1.GET("/contests/:id", h.getContest)
		v1.POST("/contests/:id/invest", h.invest)
		v1.POST("/contests/:id/decline", h.decline)
		v1.POST("/contests/:id/cancel", h.cancel)
	}

	webhooks := engine.Group("/webhooks", WebhookSecret(cfg.WebhookSecret))
	{
		webhooks.POST("/payments", h.paymentConfirmed)
		webhooks.POST("/withdrawals", h.withdrawalResult)
		webhooks.POST("/workouts", h.workoutIngested)
	}

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.http.Addr).Info("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
