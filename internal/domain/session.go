package domain

import "time"

// Role identifies which side of a shuttle payment a session acts as.
type Role string

const (
	RoleStudent Role = "student"
	RoleDriver  Role = "driver"
)

// Valid reports whether the role is one the agent knows.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleDriver
}

// BankDetails holds a driver's payout account.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Stats holds cached usage counters shown on the dashboard.
type Stats struct {
	TripsTaken  int     `json:"trips_taken"`
	TotalSpent  float64 `json:"total_spent"`
	TotalEarned float64 `json:"total_earned"`
}

// Session is the authenticated identity acting on this device, plus the
// cached profile and wallet snapshot. Role and identity never change for the
// lifetime of a session; switching role requires a fresh login.
type Session struct {
	UserID        string
	Role          Role
	Token         string
	Name          string
	Email         string
	Phone         string
	WalletBalance float64 // students only
	BankDetails   BankDetails
	Stats         Stats
	UpdatedAt     time.Time
}
