package dao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	statusHoldActive    = "active"
	statusHoldConfirmed = "confirmed"
	statusHoldReleased  = "released"
	statusHoldExpired   = "expired"
)

type PaymentHold struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Numbers []string  `gorm:"serializer:json"`

	Status      string  `gorm:"not null;index"`
	Method      string  `gorm:"not null"`
	Amount      float64 `gorm:"not null"`
	ProviderRef string  `gorm:"index"`

	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (h *PaymentHold) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

type HoldDAO struct {
	db *gorm.DB
}

func NewHoldDAO(db *gorm.DB) *HoldDAO {
	return &HoldDAO{
		db: db,
	}
}

func (d *HoldDAO) FindByID(ctx context.Context, id uuid.UUID) (PaymentHold, error) {
	var hold PaymentHold

	result := d.db.WithContext(ctx).First(&hold, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return PaymentHold{}, ErrHoldNotFound
		}

		return PaymentHold{}, result.Error
	}

	return hold, nil
}

func (d *HoldDAO) FindByProviderRef(ctx context.Context, ref string) (PaymentHold, error) {
	var hold PaymentHold

	result := d.db.WithContext(ctx).First(&hold, "provider_ref = ?", ref)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return PaymentHold{}, ErrHoldNotFound
		}

		return PaymentHold{}, result.Error
	}

	return hold, nil
}

func (d *HoldDAO) FindExpired(ctx context.Context, now time.Time) ([]PaymentHold, error) {
	var holds []PaymentHold

	result := d.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", statusHoldActive, now).
		Find(&holds)
	if result.Error != nil {
		return nil, result.Error
	}

	return holds, nil
}

func (d *HoldDAO) UpdateProviderRef(ctx context.Context, id uuid.UUID, ref string) error {
	result := d.db.WithContext(ctx).
		Model(&PaymentHold{}).
		Where("id = ?", id).
		Update("provider_ref", ref)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHoldNotFound
	}

	return nil
}
