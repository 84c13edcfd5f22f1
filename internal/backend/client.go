package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"shuttlepay/internal/domain"
)

// Client talks to the campus payment backend. The backend owns the
// authoritative wallet ledger; this client only drives it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a business rejection from the backend. The message is surfaced
// to the user verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsAPIError reports whether err is a backend business rejection rather than
// a transport failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the signup payload.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Profile is the backend's snapshot of a user.
type Profile struct {
	UserID        string             `json:"id"`
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone"`
	WalletBalance float64            `json:"walletBalance"`
	BankDetails   domain.BankDetails `json:"bankDetails"`
	Stats         domain.Stats       `json:"stats"`
}

// AuthResult is the identity plus wallet/profile snapshot returned by
// register and login.
type AuthResult struct {
	Token   string  `json:"token"`
	Profile Profile `json:"user"`
}

// Login authenticates against the role-specific login endpoint.
func (c *Client) Login(ctx context.Context, role domain.Role, creds Credentials) (*AuthResult, error) {
	var result AuthResult
	path := fmt.Sprintf("/api/%s/login", role)
	if err := c.do(ctx, http.MethodPost, path, "", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account and returns the fresh identity snapshot.
func (c *Client) Register(ctx context.Context, role domain.Role, reg Registration) (*AuthResult, error) {
	var result AuthResult
	path := fmt.Sprintf("/api/%s/register", role)
	if err := c.do(ctx, http.MethodPost, path, "", reg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProfile fetches the authoritative profile for the bearer of token.
func (c *Client) GetProfile(ctx context.Context, token string) (*Profile, error) {
	var result struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/profile", token, nil, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// UpdateProfile patches profile fields and returns the refreshed snapshot.
func (c *Client) UpdateProfile(ctx context.Context, token string, patch map[string]any) (*Profile, error) {
	var result struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/profile", token, patch, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// GenerateCode asks the backend for a fare-bound code. The expiry in the
// returned code is backend-set and authoritative.
func (c *Client) GenerateCode(ctx context.Context, token string, fare float64, route string) (*domain.PaymentCode, error) {
	body := struct {
		Fare  float64 `json:"fare"`
		Route string  `json:"route"`
	}{Fare: fare, Route: route}

	var code domain.PaymentCode
	if err := c.do(ctx, http.MethodPost, "/api/generate-qr", token, body, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// PayResult carries the backend's confirmation of a proximity payment.
type PayResult struct {
	TransactionID string `json:"transaction"`
	Wallet        struct {
		WalletBalance float64 `json:"walletBalance"`
	} `json:"wallet"`
}

// PayWithCode submits a proximity payment. The backend rejects reused or
// expired references.
func (c *Client) PayWithCode(ctx context.Context, token string, code *domain.PaymentCode) (*PayResult, error) {
	body := struct {
		DriverID  string  `json:"driver_id"`
		Fare      float64 `json:"fare"`
		Route     string  `json:"route"`
		Reference string  `json:"qrReference"`
	}{
		DriverID:  code.IssuerID,
		Fare:      code.Fare,
		Route:     code.RouteLabel,
		Reference: code.Reference,
	}

	var result PayResult
	if err := c.do(ctx, http.MethodPost, "/api/pay-with-qr", token, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// InitializeTopup requests a gateway session for the chosen amount.
func (c *Client) InitializeTopup(ctx context.Context, token string, amount float64, email string) (*domain.TopupIntent, error) {
	body := struct {
		Amount float64 `json:"amount"`
		Email  string  `json:"email"`
	}{Amount: amount, Email: email}

	var intent domain.TopupIntent
	if err := c.do(ctx, http.MethodPost, "/api/initialize-payment", token, body, &intent); err != nil {
		return nil, err
	}
	intent.Amount = amount
	return &intent, nil
}

// VerifyResult carries the backend's verdict on a gateway reference.
type VerifyResult struct {
	Wallet struct {
		WalletBalance float64 `json:"walletBalance"`
	} `json:"wallet"`
	Message string `json:"message"`
}

// VerifyTopup asks the backend to reconcile a gateway reference. Safe to call
// more than once server-side; the caller still guards against redundant calls.
func (c *Client) VerifyTopup(ctx context.Context, token, reference string) (*VerifyResult, error) {
	path := "/api/verify-payment?reference=" + url.QueryEscape(reference)
	var result VerifyResult
	if err := c.do(ctx, http.MethodGet, path, token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do executes one JSON round trip. Non-2xx responses become *APIError with
// the backend's message; everything else is a transport failure.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend response read failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(data, resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend response decode failed: %w", err)
	}
	return nil
}

// extractMessage pulls the backend's error text out of a rejection body.
func extractMessage(data []byte, status int) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("backend rejected request (status %d)", status)
}
