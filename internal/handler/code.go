package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttlepay/internal/service"
)

// CodeHandler handles HTTP requests for proximity payment codes.
type CodeHandler struct {
	codes *service.CodeService
}

// NewCodeHandler creates a new CodeHandler.
func NewCodeHandler(codes *service.CodeService) *CodeHandler {
	return &CodeHandler{codes: codes}
}

// GenerateCodeRequest is the HTTP request body for generating a code.
type GenerateCodeRequest struct {
	Fare  float64 `json:"fare"`
	Route string  `json:"route"`
}

// CodeResponse is the HTTP response for a generated code.
type CodeResponse struct {
	Reference  string    `json:"reference"`
	Fare       float64   `json:"fare"`
	Route      string    `json:"route"`
	Vehicle    string    `json:"vehicle"`
	DriverName string    `json:"driver_name"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Token      string    `json:"token"`
}

// Generate handles POST /v1/codes
func (h *CodeHandler) Generate(c *gin.Context) {
	var req GenerateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	generated, err := h.codes.GenerateCode(c.Request.Context(), service.GenerateCodeRequest{
		Fare:  req.Fare,
		Route: req.Route,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CodeResponse{
		Reference:  generated.Code.Reference,
		Fare:       generated.Code.Fare,
		Route:      generated.Code.RouteLabel,
		Vehicle:    generated.Code.VehicleLabel,
		DriverName: generated.Code.IssuerName,
		IssuedAt:   generated.Code.IssuedAt,
		ExpiresAt:  generated.Code.ExpiresAt,
		Token:      generated.Token,
	})
}
