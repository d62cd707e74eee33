package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Rg               string    `json:"rg,omitempty"`
	Password         string    `json:"-"`
	IsAdmin          bool      `json:"is_admin"`
	PurchasedTickets []string  `json:"purchased_tickets"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AsOwner is the identity stamped onto tickets this user reserves or buys.
func (u User) AsOwner() Owner {
	return Owner{
		ID:    u.ID,
		Name:  u.Name,
		Phone: u.Phone,
		Rg:    u.Rg,
	}
}
