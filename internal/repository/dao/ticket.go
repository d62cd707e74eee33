package dao

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrHoldNotFound   = errors.New("payment hold not found")
	ErrHoldNotActive  = errors.New("payment hold is not active")
)

// TicketsConflictError reports the numbers that were no longer available
// when a batch transition tried to commit. The batch mutates nothing.
type TicketsConflictError struct {
	Numbers []string
}

func (e *TicketsConflictError) Error() string {
	return fmt.Sprintf("tickets not available: %v", strings.Join(e.Numbers, ", "))
}

const (
	statusAvailable = "available"
	statusReserved  = "reserved"
	statusPurchased = "purchased"
)

type Ticket struct {
	Number string `gorm:"primaryKey;size:8"`
	Status string `gorm:"not null;index"`

	OwnerID    *uuid.UUID `gorm:"type:uuid;index"`
	OwnerName  string
	OwnerPhone string
	OwnerRg    string

	// Set while an active payment hold owns the ticket.
	HoldID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TicketOwner is the identity written onto tickets when they leave the
// available state.
type TicketOwner struct {
	ID    uuid.UUID
	Name  string
	Phone string
	Rg    string
}

type TicketDAO struct {
	db *gorm.DB
}

func NewTicketDAO(db *gorm.DB) *TicketDAO {
	return &TicketDAO{
		db: db,
	}
}

func (d *TicketDAO) FindAll(ctx context.Context) ([]Ticket, error) {
	var tickets []Ticket

	result := d.db.WithContext(ctx).Order("number").Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}

	return tickets, nil
}

func (d *TicketDAO) FindByNumber(ctx context.Context, number string) (Ticket, error) {
	var ticket Ticket

	result := d.db.WithContext(ctx).First(&ticket, "number = ?", number)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Ticket{}, ErrTicketNotFound
		}

		return Ticket{}, result.Error
	}

	return ticket, nil
}

func (d *TicketDAO) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	result := d.db.WithContext(ctx).
		Model(&Ticket{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	return counts, nil
}

// lockTickets loads the given numbers inside tx with row locks, in number
// order so overlapping batches always acquire locks in the same sequence.
func lockTickets(tx *gorm.DB, numbers []string) ([]Ticket, error) {
	sorted := make([]string, len(numbers))
	copy(sorted, numbers)
	sort.Strings(sorted)

	var tickets []Ticket
	result := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("number IN ?", sorted).
		Order("number").
		Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}

	return tickets, nil
}

// conflictingNumbers returns the subset of numbers that is missing from or
// not available among the locked rows.
func conflictingNumbers(numbers []string, locked []Ticket) []string {
	byNumber := make(map[string]Ticket, len(locked))
	for _, t := range locked {
		byNumber[t.Number] = t
	}

	var conflicts []string
	for _, n := range numbers {
		t, ok := byNumber[n]
		if !ok || t.Status != statusAvailable {
			conflicts = append(conflicts, n)
		}
	}
	sort.Strings(conflicts)

	return conflicts
}

// Reserve transitions every number from available to reserved, stamping the
// owner, as one all-or-nothing transaction. Any number that is not available
// aborts the whole batch with a TicketsConflictError.
func (d *TicketDAO) Reserve(ctx context.Context, numbers []string, owner TicketOwner) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTickets(tx, numbers)
		if err != nil {
			return err
		}

		if conflicts := conflictingNumbers(numbers, locked); len(conflicts) > 0 {
			return &TicketsConflictError{Numbers: conflicts}
		}

		result := tx.Model(&Ticket{}).
			Where("number IN ?", numbers).
			Updates(map[string]any{
				"status":      statusReserved,
				"owner_id":    owner.ID,
				"owner_name":  owner.Name,
				"owner_phone": owner.Phone,
				"owner_rg":    owner.Rg,
			})

		return result.Error
	})
}

// Hold atomically creates the payment hold row and moves its numbers from
// available to reserved under the hold. Same all-or-nothing contract as
// Reserve.
func (d *TicketDAO) Hold(ctx context.Context, hold PaymentHold, owner TicketOwner) (PaymentHold, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTickets(tx, hold.Numbers)
		if err != nil {
			return err
		}

		if conflicts := conflictingNumbers(hold.Numbers, locked); len(conflicts) > 0 {
			return &TicketsConflictError{Numbers: conflicts}
		}

		if err := tx.Create(&hold).Error; err != nil {
			return err
		}

		result := tx.Model(&Ticket{}).
			Where("number IN ?", hold.Numbers).
			Updates(map[string]any{
				"status":      statusReserved,
				"owner_id":    owner.ID,
				"owner_name":  owner.Name,
				"owner_phone": owner.Phone,
				"owner_rg":    owner.Rg,
				"hold_id":     hold.ID,
			})

		return result.Error
	})
	if err != nil {
		return PaymentHold{}, err
	}

	return hold, nil
}

// ConfirmHold settles an active hold: its tickets become purchased, the
// hold closes, and the numbers join the owner's purchased cache.
func (d *TicketDAO) ConfirmHold(ctx context.Context, holdID uuid.UUID) (PaymentHold, error) {
	var hold PaymentHold

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockHold(tx, holdID, &hold); err != nil {
			return err
		}
		if hold.Status != statusHoldActive {
			return ErrHoldNotActive
		}

		result := tx.Model(&Ticket{}).
			Where("hold_id = ?", holdID).
			Updates(map[string]any{
				"status":  statusPurchased,
				"hold_id": nil,
			})
		if result.Error != nil {
			return result.Error
		}

		if err := appendPurchased(tx, hold.UserID, hold.Numbers); err != nil {
			return err
		}

		hold.Status = statusHoldConfirmed

		return tx.Save(&hold).Error
	})
	if err != nil {
		return PaymentHold{}, err
	}

	return hold, nil
}

// ReleaseHold returns an active hold's tickets to available with owner
// fields cleared, closing the hold with the given terminal status.
func (d *TicketDAO) ReleaseHold(ctx context.Context, holdID uuid.UUID, terminal string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hold PaymentHold
		if err := lockHold(tx, holdID, &hold); err != nil {
			return err
		}
		if hold.Status != statusHoldActive {
			return ErrHoldNotActive
		}

		result := tx.Model(&Ticket{}).
			Where("hold_id = ?", holdID).
			Updates(map[string]any{
				"status":      statusAvailable,
				"owner_id":    nil,
				"owner_name":  "",
				"owner_phone": "",
				"owner_rg":    "",
				"hold_id":     nil,
			})
		if result.Error != nil {
			return result.Error
		}

		hold.Status = terminal

		return tx.Save(&hold).Error
	})
}

// SetStatus is the administrative override. Moving to available wipes the
// owner fields; moving elsewhere preserves whatever owner is present. The
// former owner's purchased cache is kept consistent either way.
func (d *TicketDAO) SetStatus(ctx context.Context, number, status string) (Ticket, error) {
	var ticket Ticket

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTickets(tx, []string{number})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrTicketNotFound
		}
		ticket = locked[0]

		prevOwner := ticket.OwnerID
		wasPurchased := ticket.Status == statusPurchased

		ticket.Status = status
		ticket.HoldID = nil
		if status == statusAvailable {
			ticket.OwnerID = nil
			ticket.OwnerName = ""
			ticket.OwnerPhone = ""
			ticket.OwnerRg = ""
		}
		if err := tx.Save(&ticket).Error; err != nil {
			return err
		}

		if wasPurchased && status != statusPurchased && prevOwner != nil {
			if err := removePurchased(tx, *prevOwner, []string{number}); err != nil {
				return err
			}
		}
		if !wasPurchased && status == statusPurchased && ticket.OwnerID != nil {
			if err := appendPurchased(tx, *ticket.OwnerID, []string{number}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Ticket{}, err
	}

	return ticket, nil
}

// AssignOwner forces a ticket to purchased under the given user, replacing
// any previous owner and updating both purchased caches.
func (d *TicketDAO) AssignOwner(ctx context.Context, number string, user User) (Ticket, error) {
	var ticket Ticket

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTickets(tx, []string{number})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrTicketNotFound
		}
		ticket = locked[0]

		if ticket.Status == statusPurchased && ticket.OwnerID != nil && *ticket.OwnerID != user.ID {
			if err := removePurchased(tx, *ticket.OwnerID, []string{number}); err != nil {
				return err
			}
		}

		alreadyOwned := ticket.Status == statusPurchased && ticket.OwnerID != nil && *ticket.OwnerID == user.ID

		ticket.Status = statusPurchased
		ticket.OwnerID = &user.ID
		ticket.OwnerName = user.Name
		ticket.OwnerPhone = user.Phone
		ticket.OwnerRg = user.Rg
		ticket.HoldID = nil
		if err := tx.Save(&ticket).Error; err != nil {
			return err
		}

		if !alreadyOwned {
			if err := appendPurchased(tx, user.ID, []string{number}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Ticket{}, err
	}

	return ticket, nil
}

// ResetAll returns every ticket to available with owner fields cleared and
// empties every user's purchased cache.
func (d *TicketDAO) ResetAll(ctx context.Context) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Ticket{}).
			Where("1 = 1").
			Updates(map[string]any{
				"status":      statusAvailable,
				"owner_id":    nil,
				"owner_name":  "",
				"owner_phone": "",
				"owner_rg":    "",
				"hold_id":     nil,
			})
		if result.Error != nil {
			return result.Error
		}

		return tx.Model(&User{}).
			Where("1 = 1").
			Update("purchased_tickets", []string{}).Error
	})
}

func appendPurchased(tx *gorm.DB, userID uuid.UUID, numbers []string) error {
	var user User
	result := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}

		return result.Error
	}

	owned := make(map[string]struct{}, len(user.PurchasedTickets))
	for _, n := range user.PurchasedTickets {
		owned[n] = struct{}{}
	}
	for _, n := range numbers {
		if _, ok := owned[n]; !ok {
			user.PurchasedTickets = append(user.PurchasedTickets, n)
		}
	}
	sort.Strings(user.PurchasedTickets)

	return tx.Save(&user).Error
}

func removePurchased(tx *gorm.DB, userID uuid.UUID, numbers []string) error {
	var user User
	result := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}

		return result.Error
	}

	drop := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		drop[n] = struct{}{}
	}

	kept := user.PurchasedTickets[:0]
	for _, n := range user.PurchasedTickets {
		if _, ok := drop[n]; !ok {
			kept = append(kept, n)
		}
	}
	user.PurchasedTickets = kept

	return tx.Save(&user).Error
}

func lockHold(tx *gorm.DB, holdID uuid.UUID, hold *PaymentHold) error {
	result := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(hold, "id = ?", holdID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrHoldNotFound
		}

		return result.Error
	}

	return nil
}
