package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	"shuttlepay/internal/service"
)

// SessionHandler handles HTTP requests for the device session.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// LoginRequest is the HTTP request body for logging in.
type LoginRequest struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the HTTP request body for registration.
type RegisterRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// SessionResponse is the HTTP response for session state.
type SessionResponse struct {
	Hydrated      bool               `json:"hydrated"`
	Authenticated bool               `json:"authenticated"`
	UserID        string             `json:"user_id,omitempty"`
	Role          string             `json:"role,omitempty"`
	Name          string             `json:"name,omitempty"`
	Email         string             `json:"email,omitempty"`
	Phone         string             `json:"phone,omitempty"`
	WalletBalance float64            `json:"wallet_balance"`
	BankDetails   domain.BankDetails `json:"bank_details"`
	Stats         domain.Stats       `json:"stats"`
}

func sessionResponse(hydrated bool, session domain.Session, authenticated bool) SessionResponse {
	resp := SessionResponse{Hydrated: hydrated, Authenticated: authenticated}
	if authenticated {
		resp.UserID = session.UserID
		resp.Role = string(session.Role)
		resp.Name = session.Name
		resp.Email = session.Email
		resp.Phone = session.Phone
		resp.WalletBalance = session.WalletBalance
		resp.BankDetails = session.BankDetails
		resp.Stats = session.Stats
	}
	return resp
}

// Login handles POST /v1/session/login
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and password are required"})
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), domain.Role(req.Role), backend.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, sessionResponse(true, session, true))
}

// Register handles POST /v1/session/register
func (h *SessionHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name, email and password are required"})
		return
	}

	session, err := h.sessions.Register(c.Request.Context(), domain.Role(req.Role), backend.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, sessionResponse(true, session, true))
}

// Logout handles POST /v1/session/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get handles GET /v1/session
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.sessions.Current()
	respondJSON(c, http.StatusOK, sessionResponse(h.sessions.Hydrated(), session, ok))
}

// UpdateProfile handles PATCH /v1/session/profile
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.sessions.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, sessionResponse(true, session, true))
}

// Refresh handles POST /v1/session/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	session, err := h.sessions.LoadUserData(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, sessionResponse(true, session, true))
}
