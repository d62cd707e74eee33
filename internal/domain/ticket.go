package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketPurchased TicketStatus = "purchased"
)

// Ticket is one raffle entry. Owner fields are set iff the ticket has left
// the available state. HoldID marks a ticket locked by an in-flight payment.
type Ticket struct {
	Number     string       `json:"number"`
	Status     TicketStatus `json:"status"`
	OwnerID    *uuid.UUID   `json:"owner_id,omitempty"`
	OwnerName  string       `json:"owner_name,omitempty"`
	OwnerPhone string       `json:"owner_phone,omitempty"`
	OwnerRg    string       `json:"owner_rg,omitempty"`
	HoldID     *uuid.UUID   `json:"-"`
}

// Owner carries the identity stamped onto tickets on reservation and purchase.
type Owner struct {
	ID    uuid.UUID
	Name  string
	Phone string
	Rg    string
}

// TicketCounts is the per-status breakdown of the inventory.
type TicketCounts struct {
	Total     int64   `json:"total"`
	Available int64   `json:"available"`
	Reserved  int64   `json:"reserved"`
	Purchased int64   `json:"purchased"`
	Price     float64 `json:"ticket_price"`
}

// FormatTicketNumber renders n as the fixed-width number used as the
// ticket key, e.g. 7 -> "007".
func FormatTicketNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}
