package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldConfirmed HoldStatus = "confirmed"
	HoldReleased  HoldStatus = "released"
	HoldExpired   HoldStatus = "expired"
)

type PaymentMethod string

const (
	PaymentPix  PaymentMethod = "pix"
	PaymentCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// PaymentHold locks a set of tickets while a payment is in flight.
// Tickets under an active hold stay reserved; they only become purchased
// once the gateway confirms, and go back to available otherwise.
type PaymentHold struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	Numbers     []string      `json:"numbers"`
	Status      HoldStatus    `json:"status"`
	Method      PaymentMethod `json:"method"`
	Amount      float64       `json:"amount"`
	ProviderRef string        `json:"provider_ref,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Expired reports whether the hold has outlived its payment window.
func (h PaymentHold) Expired(now time.Time) bool {
	return h.Status == HoldActive && now.After(h.ExpiresAt)
}
