package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttlepay/internal/service"
)

// TopupHandler handles HTTP requests for wallet top-ups.
type TopupHandler struct {
	topups *service.TopupService
}

// NewTopupHandler creates a new TopupHandler.
func NewTopupHandler(topups *service.TopupService) *TopupHandler {
	return &TopupHandler{topups: topups}
}

// InitializeTopupRequest is the HTTP request body for starting a top-up.
type InitializeTopupRequest struct {
	Amount float64 `json:"amount"`
}

// TopupIntentResponse is the HTTP response for an initialized top-up.
type TopupIntentResponse struct {
	Reference        string  `json:"reference"`
	Amount           float64 `json:"amount"`
	AuthorizationURL string  `json:"authorization_url"`
}

// Initialize handles POST /v1/topups
func (h *TopupHandler) Initialize(c *gin.Context) {
	var req InitializeTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	intent, err := h.topups.Initialize(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, TopupIntentResponse{
		Reference:        intent.Reference,
		Amount:           intent.Amount,
		AuthorizationURL: intent.GatewayRedirectURL,
	})
}

// TopupResultResponse is the HTTP response for a verified top-up.
type TopupResultResponse struct {
	Reference       string  `json:"reference"`
	NewBalance      float64 `json:"new_balance"`
	Message         string  `json:"message,omitempty"`
	RedirectAfterMS int64   `json:"redirect_after_ms"`
}

// HandleReturn handles GET /v1/topups/return?reference=
//
// This is the gateway's return leg. The UI may hit it repeatedly while
// re-rendering; only the first call for a reference reaches the backend.
func (h *TopupHandler) HandleReturn(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "reference is required"})
		return
	}

	result, err := h.topups.HandleReturn(c.Request.Context(), reference)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, TopupResultResponse{
		Reference:       result.Reference,
		NewBalance:      result.NewBalance,
		Message:         result.Message,
		RedirectAfterMS: result.RedirectAfter.Milliseconds(),
	})
}

// Retry handles POST /v1/topups/:reference/retry
func (h *TopupHandler) Retry(c *gin.Context) {
	result, err := h.topups.RetryVerification(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, TopupResultResponse{
		Reference:       result.Reference,
		NewBalance:      result.NewBalance,
		Message:         result.Message,
		RedirectAfterMS: result.RedirectAfter.Milliseconds(),
	})
}
