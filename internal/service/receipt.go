package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shuttlepay/internal/domain"
)

// ReceiptService builds receipts for verified payment attempts.
type ReceiptService struct {
	notifier *NotificationService
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(notifier *NotificationService) *ReceiptService {
	return &ReceiptService{notifier: notifier}
}

// GenerateReceipt produces a receipt for a verified proximity payment.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, attempt *domain.PaymentAttempt, code *domain.PaymentCode, newBalance float64) *domain.Receipt {
	receipt := &domain.Receipt{
		ID:           uuid.New().String(),
		Reference:    attempt.Reference,
		PayerID:      attempt.PayerID,
		IssuerName:   code.IssuerName,
		RouteLabel:   code.RouteLabel,
		VehicleLabel: code.VehicleLabel,
		Amount:       attempt.Amount,
		Kind:         attempt.Kind,
		NewBalance:   newBalance,
		CreatedAt:    time.Now(),
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyReceiptReady(ctx, receipt.PayerID, receipt.ID, receipt.Amount)
	}

	return receipt
}

// FormatReceipt formats the receipt as a string (for email/print).
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	return `
=====================================
       SHUTTLE PAYMENT RECEIPT
=====================================
Receipt ID: ` + receipt.ID + `
Reference:  ` + receipt.Reference + `
Date:       ` + receipt.CreatedAt.Format("Jan 02, 2006 3:04 PM") + `

RIDE DETAILS
-------------------------------------
Route:   ` + receipt.RouteLabel + `
Vehicle: ` + receipt.VehicleLabel + `
Driver:  ` + receipt.IssuerName + `

PAYMENT
-------------------------------------
Fare:           ` + formatAmount(receipt.Amount) + `
Wallet Balance: ` + formatAmount(receipt.NewBalance) + `

=====================================
    Thank you for riding with us!
=====================================
`
}

func formatAmount(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
