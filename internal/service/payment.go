package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/gateway/mercadopago"
)

var (
	ErrHoldForbidden      = errors.New("hold belongs to another user")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrUnknownPaymentRef  = errors.New("payment references no known hold")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Inventory is the slice of RaffleService the payment flow needs: taking,
// settling, and querying provisional holds.
type Inventory interface {
	TakeHold(ctx context.Context, user domain.User, method domain.PaymentMethod) (domain.PaymentHold, error)
	ConfirmHold(ctx context.Context, holdID uuid.UUID) (domain.PaymentHold, error)
	ReleaseHold(ctx context.Context, holdID uuid.UUID, terminal domain.HoldStatus) error
	FindHold(ctx context.Context, holdID uuid.UUID) (domain.PaymentHold, error)
	FindHoldByProviderRef(ctx context.Context, ref string) (domain.PaymentHold, error)
	ExpiredHolds(ctx context.Context, now time.Time) ([]domain.PaymentHold, error)
	SetHoldProviderRef(ctx context.Context, holdID uuid.UUID, ref string) error
}

// PaymentGateway is the provider client surface. Implemented by
// mercadopago.Client.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, externalRef string, items []mercadopago.PreferenceItem) (mercadopago.Preference, error)
	CreatePixPayment(ctx context.Context, externalRef string, amount float64, description string, payer mercadopago.Payer) (mercadopago.PixPayment, error)
	GetPayment(ctx context.Context, id string) (mercadopago.Payment, error)
}

// CheckoutResult is what the buyer needs to finish paying: a redirect URL
// for card, or a scannable PIX code.
type CheckoutResult struct {
	HoldID       uuid.UUID            `json:"hold_id"`
	Method       domain.PaymentMethod `json:"method"`
	Numbers      []string             `json:"numbers"`
	Amount       float64              `json:"amount"`
	ExpiresAt    time.Time            `json:"expires_at"`
	InitPoint    string               `json:"init_point,omitempty"`
	QRCode       string               `json:"qr_code,omitempty"`
	QRCodeBase64 string               `json:"qr_code_base64,omitempty"`
}

type PaymentService struct {
	inventory Inventory
	gateway   PaymentGateway

	sweepInterval time.Duration
}

func NewPaymentService(inventory Inventory, gateway PaymentGateway, sweepInterval time.Duration) *PaymentService {
	return &PaymentService{
		inventory:     inventory,
		gateway:       gateway,
		sweepInterval: sweepInterval,
	}
}

// Checkout takes a provisional hold over the caller's selection and opens a
// payment with the gateway. Tickets are never marked purchased here; that
// only happens when the gateway confirms. A gateway failure releases the
// hold before returning, so nothing stays locked.
func (s *PaymentService) Checkout(ctx context.Context, user domain.User, method domain.PaymentMethod) (CheckoutResult, error) {
	switch method {
	case domain.PaymentPix, domain.PaymentCard:
	default:
		return CheckoutResult{}, ErrUnsupportedMethod
	}

	hold, err := s.inventory.TakeHold(ctx, user, method)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("s.inventory.TakeHold -> %w", err)
	}

	result := CheckoutResult{
		HoldID:    hold.ID,
		Method:    method,
		Numbers:   hold.Numbers,
		Amount:    hold.Amount,
		ExpiresAt: hold.ExpiresAt,
	}

	description := fmt.Sprintf("Bilhetes %v", strings.Join(hold.Numbers, ", "))

	var providerRef string
	switch method {
	case domain.PaymentPix:
		pix, err := s.gateway.CreatePixPayment(ctx, hold.ID.String(), hold.Amount, description, mercadopago.Payer{
			Email: user.Email,
			Identification: mercadopago.Identification{
				Type:   "RG",
				Number: user.Rg,
			},
		})
		if err != nil {
			s.abort(ctx, hold.ID, err)
			return CheckoutResult{}, fmt.Errorf("s.gateway.CreatePixPayment -> %w: %w", ErrGatewayUnavailable, err)
		}
		providerRef = pix.ID
		result.QRCode = pix.QRCode
		result.QRCodeBase64 = pix.QRCodeBase64

	case domain.PaymentCard:
		pref, err := s.gateway.CreatePreference(ctx, hold.ID.String(), []mercadopago.PreferenceItem{
			{
				Title:     description,
				Quantity:  len(hold.Numbers),
				UnitPrice: hold.Amount / float64(len(hold.Numbers)),
			},
		})
		if err != nil {
			s.abort(ctx, hold.ID, err)
			return CheckoutResult{}, fmt.Errorf("s.gateway.CreatePreference -> %w: %w", ErrGatewayUnavailable, err)
		}
		providerRef = pref.ID
		result.InitPoint = pref.InitPoint
	}

	if err := s.inventory.SetHoldProviderRef(ctx, hold.ID, providerRef); err != nil {
		zap.L().Error("failed to record provider ref on hold",
			zap.String("hold_id", hold.ID.String()),
			zap.Error(err))
	}

	return result, nil
}

// HandleNotification settles the hold referenced by a gateway payment:
// approved confirms it, rejected releases it, pending leaves it alone.
func (s *PaymentService) HandleNotification(ctx context.Context, paymentID string) error {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("s.gateway.GetPayment -> %w", err)
	}

	holdID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		// Some notification flavors omit the external reference; fall back
		// to the provider's payment ID recorded at checkout.
		hold, refErr := s.inventory.FindHoldByProviderRef(ctx, payment.ID)
		if refErr != nil {
			return ErrUnknownPaymentRef
		}
		holdID = hold.ID
	}

	switch payment.Status {
	case domain.PaymentApproved:
		if _, err := s.inventory.ConfirmHold(ctx, holdID); err != nil {
			return fmt.Errorf("s.inventory.ConfirmHold -> %w", err)
		}
	case domain.PaymentRejected:
		if err := s.inventory.ReleaseHold(ctx, holdID, domain.HoldReleased); err != nil {
			return fmt.Errorf("s.inventory.ReleaseHold -> %w", err)
		}
	case domain.PaymentPending:
		// Nothing to settle yet; the sweeper bounds how long we wait.
	}

	return nil
}

// Cancel releases a hold when the buyer abandons checkout. Only the hold's
// owner (or an admin) may cancel it.
func (s *PaymentService) Cancel(ctx context.Context, actor domain.User, holdID uuid.UUID) error {
	hold, err := s.inventory.FindHold(ctx, holdID)
	if err != nil {
		return fmt.Errorf("s.inventory.FindHold -> %w", err)
	}
	if hold.UserID != actor.ID && !actor.IsAdmin {
		return ErrHoldForbidden
	}

	if err := s.inventory.ReleaseHold(ctx, holdID, domain.HoldReleased); err != nil {
		return fmt.Errorf("s.inventory.ReleaseHold -> %w", err)
	}

	return nil
}

// RunHoldSweeper releases expired holds on a fixed interval until ctx is
// done, so an unanswered gateway can never lock inventory forever.
func (s *PaymentService) RunHoldSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweepExpired(ctx, now)
		}
	}
}

func (s *PaymentService) sweepExpired(ctx context.Context, now time.Time) {
	holds, err := s.inventory.ExpiredHolds(ctx, now)
	if err != nil {
		zap.L().Error("failed to list expired holds", zap.Error(err))
		return
	}

	for _, hold := range holds {
		err := s.inventory.ReleaseHold(ctx, hold.ID, domain.HoldExpired)
		if err != nil && !errors.Is(err, ErrHoldNotActive) {
			zap.L().Error("failed to release expired hold",
				zap.String("hold_id", hold.ID.String()),
				zap.Error(err))
			continue
		}

		zap.L().Info("released expired payment hold",
			zap.String("hold_id", hold.ID.String()),
			zap.Strings("numbers", hold.Numbers))
	}
}

func (s *PaymentService) abort(ctx context.Context, holdID uuid.UUID, cause error) {
	if err := s.inventory.ReleaseHold(ctx, holdID, domain.HoldReleased); err != nil {
		zap.L().Error("failed to release hold after gateway error",
			zap.String("hold_id", holdID.String()),
			zap.NamedError("gateway_error", cause),
			zap.Error(err))
	}
}
