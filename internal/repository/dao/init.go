package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/casa-rifa/raffle-api/internal/domain"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Ticket{},
		&PaymentHold{},
	)
}

// SeedTickets creates the full numbered inventory on first run. Existing
// tickets are left alone so reruns are harmless.
func SeedTickets(ctx context.Context, db *gorm.DB, maxTickets int) error {
	var count int64
	if err := db.WithContext(ctx).Model(&Ticket{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tickets := make([]Ticket, 0, maxTickets)
	for i := 1; i <= maxTickets; i++ {
		tickets = append(tickets, Ticket{
			Number: domain.FormatTicketNumber(i),
			Status: statusAvailable,
		})
	}

	return db.WithContext(ctx).CreateInBatches(tickets, 500).Error
}

// SeedAdmin creates the distinguished admin account if it does not exist.
// The password must already be hashed.
func SeedAdmin(ctx context.Context, db *gorm.DB, admin User) error {
	var existing User
	err := db.WithContext(ctx).First(&existing, "email = ?", admin.Email).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin.IsAdmin = true

	return db.WithContext(ctx).Create(&admin).Error
}
