// Package notify sends SMS alerts to emergency contacts.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// Notifier is the outbound SMS gateway.
// Implementations must be safe for concurrent use.
type Notifier interface {
	// SendSMS sends one text message to a phone number.
	SendSMS(ctx context.Context, phone, message string) error
}

// DeliveryResult records the outcome of one emergency SMS send.
type DeliveryResult struct {
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Success bool   `json:"success"`
}

// SendEmergencyBatch sends an alert to every emergency contact.
// A failed send is recorded per-contact and never aborts the remaining
// sends. The returned slice has one entry per contact, in order.
func SendEmergencyBatch(ctx context.Context, n Notifier, contacts []store.EmergencyContact, userName, message, severity string, now time.Time) []DeliveryResult {
	body := emergencyMessage(userName, message, severity, now)

	results := make([]DeliveryResult, 0, len(contacts))
	for _, contact := range contacts {
		err := n.SendSMS(ctx, contact.Phone, body)
		results = append(results, DeliveryResult{
			Contact: contact.Name,
			Phone:   contact.Phone,
			Success: err == nil,
		})
	}
	return results
}

// emergencyMessage formats the alert SMS body.
func emergencyMessage(userName, message, severity string, now time.Time) string {
	return strings.TrimSpace(fmt.Sprintf(`
🚨 ALERTE SMARTDOC

%s a besoin d'aide!

Message: "%s"

Gravité: %s
Heure: %s

Veuillez contacter immédiatement.
`, userName, message, strings.ToUpper(severity), now.Format("15:04")))
}
