package domain

import "time"

// Receipt summarizes a verified payment attempt for display or print.
type Receipt struct {
	ID           string
	Reference    string
	PayerID      string
	IssuerName   string
	RouteLabel   string
	VehicleLabel string
	Amount       float64
	Kind         AttemptKind
	NewBalance   float64
	CreatedAt    time.Time
}
