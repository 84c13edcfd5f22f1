package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttlepay/internal/service"
)

// PaymentHandler handles HTTP requests for proximity payments.
type PaymentHandler struct {
	intake       *service.IntakeService
	orchestrator *service.Orchestrator
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(intake *service.IntakeService, orchestrator *service.Orchestrator) *PaymentHandler {
	return &PaymentHandler{
		intake:       intake,
		orchestrator: orchestrator,
	}
}

// PayRequest is the HTTP request body for paying with a scanned token.
type PayRequest struct {
	Token string `json:"token"`
}

// PaymentResponse is the HTTP response for a verified payment.
type PaymentResponse struct {
	Reference  string       `json:"reference"`
	Amount     float64      `json:"amount"`
	Status     string       `json:"status"`
	NewBalance float64      `json:"new_balance"`
	Receipt    *ReceiptBody `json:"receipt,omitempty"`
	FinishedAt time.Time    `json:"finished_at"`
}

// ReceiptBody is the receipt part of a payment response.
type ReceiptBody struct {
	ID         string  `json:"id"`
	Route      string  `json:"route"`
	Vehicle    string  `json:"vehicle"`
	DriverName string  `json:"driver_name"`
	Amount     float64 `json:"amount"`
}

// Pay handles POST /v1/payments
//
// The pasted/scanned token runs through intake validation first; only a
// structurally valid, unexpired code reaches the orchestrator.
func (h *PaymentHandler) Pay(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "token is required"})
		return
	}

	code, err := h.intake.Paste(req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.orchestrator.Pay(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PaymentResponse{
		Reference:  result.Attempt.Reference,
		Amount:     result.Attempt.Amount,
		Status:     string(result.Attempt.Status),
		NewBalance: result.NewBalance,
		FinishedAt: result.Attempt.FinishedAt,
	}
	if result.Receipt != nil {
		resp.Receipt = &ReceiptBody{
			ID:         result.Receipt.ID,
			Route:      result.Receipt.RouteLabel,
			Vehicle:    result.Receipt.VehicleLabel,
			DriverName: result.Receipt.IssuerName,
			Amount:     result.Receipt.Amount,
		}
	}

	respondJSON(c, http.StatusOK, resp)
}

// AttemptResponse is the HTTP response for a journaled attempt.
type AttemptResponse struct {
	Reference  string    `json:"reference"`
	PayerID    string    `json:"payer_id"`
	Amount     float64   `json:"amount"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// GetAttempt handles GET /v1/payments/:reference
func (h *PaymentHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.orchestrator.GetAttempt(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AttemptResponse{
		Reference:  attempt.Reference,
		PayerID:    attempt.PayerID,
		Amount:     attempt.Amount,
		Kind:       string(attempt.Kind),
		Status:     string(attempt.Status),
		Message:    attempt.Message,
		StartedAt:  attempt.StartedAt,
		FinishedAt: attempt.FinishedAt,
	})
}

// Rescan handles POST /v1/payments/rescan
func (h *PaymentHandler) Rescan(c *gin.Context) {
	if err := h.intake.Rescan(); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
