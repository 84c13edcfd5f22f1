package service

import (
	"context"
	"fmt"
	"log"
	"time"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPaymentVerified NotificationType = "PAYMENT_VERIFIED"
	NotificationPaymentFailed   NotificationType = "PAYMENT_FAILED"
	NotificationPaymentBlocked  NotificationType = "PAYMENT_BLOCKED"
	NotificationTopupVerified   NotificationType = "TOPUP_VERIFIED"
	NotificationTopupFailed     NotificationType = "TOPUP_FAILED"
	NotificationReceiptReady    NotificationType = "RECEIPT_READY"
)

// Notification is a user-visible, dismissible message. Every error the
// reconciliation core produces surfaces through one of these; nothing is
// silently swallowed except per-frame scan noise.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	Dismissible bool
	CreatedAt   time.Time
}

// NotificationService delivers notifications to the device UI.
type NotificationService struct {
	// In a real deployment this would push over the UI's event channel
	// (SSE/WebSocket to the kiosk front end).
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyPaymentVerified tells the payer their fare went through.
func (s *NotificationService) NotifyPaymentVerified(ctx context.Context, userID string, fare, newBalance float64) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentVerified,
		RecipientID: userID,
		Title:       "Payment Successful",
		Message:     fmt.Sprintf("Fare of %.2f paid. Wallet balance: %.2f", fare, newBalance),
		Data: map[string]interface{}{
			"fare":        fare,
			"new_balance": newBalance,
		},
		Dismissible: true,
		CreatedAt:   time.Now(),
	})
}

// NotifyPaymentFailed surfaces a terminal payment failure verbatim.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, userID string, fare float64, reason string) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: userID,
		Title:       "Payment Failed",
		Message:     reason,
		Data: map[string]interface{}{
			"fare": fare,
		},
		Dismissible: true,
		CreatedAt:   time.Now(),
	})
}

// NotifyPaymentBlocked reports an insufficient balance with the shortfall.
func (s *NotificationService) NotifyPaymentBlocked(ctx context.Context, userID string, fare, shortfall float64) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentBlocked,
		RecipientID: userID,
		Title:       "Insufficient Balance",
		Message:     fmt.Sprintf("You need %.2f more to pay this %.2f fare. Top up and try again.", shortfall, fare),
		Data: map[string]interface{}{
			"fare":      fare,
			"shortfall": shortfall,
		},
		Dismissible: true,
		CreatedAt:   time.Now(),
	})
}

// NotifyTopupVerified confirms a wallet top-up.
func (s *NotificationService) NotifyTopupVerified(ctx context.Context, userID, reference string, newBalance float64) error {
	return s.send(ctx, Notification{
		Type:        NotificationTopupVerified,
		RecipientID: userID,
		Title:       "Wallet Topped Up",
		Message:     fmt.Sprintf("Top-up confirmed. Wallet balance: %.2f", newBalance),
		Data: map[string]interface{}{
			"reference":   reference,
			"new_balance": newBalance,
		},
		Dismissible: true,
		CreatedAt:   time.Now(),
	})
}

// NotifyTopupFailed surfaces a failed top-up verification verbatim.
func (s *NotificationService) NotifyTopupFailed(ctx context.Context, userID, reference, reason string) error {
	return s.send(ctx, Notification{
		Type:        NotificationTopupFailed,
		RecipientID: userID,
		Title:       "Top-Up Verification Failed",
		Message:     reason,
		Data: map[string]interface{}{
			"reference": reference,
		},
		Dismissible: true,
		CreatedAt:   time.Now(),
	})
}

// NotifyReceiptReady tells the payer a receipt is available.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, userID, receiptID string, amount float64) error {
	return s.send(ctx, Notification{
		Type:        NotificationReceiptReady,
		RecipientID: userID,
		Title:       "Receipt Ready",
		Message:     fmt.Sprintf("Your receipt for %.2f is ready", amount),
		Data: map[string]interface{}{
			"receipt_id": receiptID,
		},
		Dismissible: true,
		CreatedAt:   time.Now(),
	})
}

// send delivers a notification (log-backed implementation).
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)

	return nil
}
