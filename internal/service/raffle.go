package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casa-rifa/raffle-api/internal/config"
	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/repository"
	"github.com/casa-rifa/raffle-api/internal/selection"
)

var (
	ErrTicketNotFound = repository.ErrTicketNotFound
	ErrHoldNotFound   = repository.ErrHoldNotFound
	ErrHoldNotActive  = repository.ErrHoldNotActive

	ErrEmptySelection = errors.New("no tickets selected")
	ErrNotAdmin       = errors.New("user is not an admin")
	ErrInvalidStatus  = errors.New("invalid ticket status")
)

// TicketsConflictError re-exported so handlers can list the taken numbers.
type TicketsConflictError = repository.TicketsConflictError

type TicketRepository interface {
	FindAll(ctx context.Context) ([]domain.Ticket, error)
	FindByNumber(ctx context.Context, number string) (domain.Ticket, error)
	CountByStatus(ctx context.Context) (domain.TicketCounts, error)
	Reserve(ctx context.Context, numbers []string, owner domain.Owner) error
	Hold(ctx context.Context, hold domain.PaymentHold, owner domain.Owner) (domain.PaymentHold, error)
	ConfirmHold(ctx context.Context, holdID uuid.UUID) (domain.PaymentHold, error)
	ReleaseHold(ctx context.Context, holdID uuid.UUID, terminal domain.HoldStatus) error
	SetStatus(ctx context.Context, number string, status domain.TicketStatus) (domain.Ticket, error)
	AssignOwner(ctx context.Context, number string, user domain.User) (domain.Ticket, error)
	ResetAll(ctx context.Context) error
	FindHoldByID(ctx context.Context, id uuid.UUID) (domain.PaymentHold, error)
	FindHoldByProviderRef(ctx context.Context, ref string) (domain.PaymentHold, error)
	FindExpiredHolds(ctx context.Context, now time.Time) ([]domain.PaymentHold, error)
	SetHoldProviderRef(ctx context.Context, id uuid.UUID, ref string) error
}

// RaffleService owns the ticket inventory: the catalog, per-user
// selections, and every status transition. All mutation funnels through
// here; nothing else writes ticket or purchased-cache state.
type RaffleService struct {
	tickets TicketRepository
	users   UserRepository
	sel     *selection.Store

	price         float64
	holdTTL       time.Duration
	selTTL        time.Duration
	sweepInterval time.Duration
}

func NewRaffleService(tickets TicketRepository, users UserRepository, sel *selection.Store, conf *config.RaffleConfig) *RaffleService {
	return &RaffleService{
		tickets:       tickets,
		users:         users,
		sel:           sel,
		price:         conf.TicketPrice,
		holdTTL:       conf.HoldTTL,
		selTTL:        conf.SelectionTTL,
		sweepInterval: conf.SweepInterval,
	}
}

func (s *RaffleService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.tickets.FindAll -> %w", err)
	}

	return tickets, nil
}

func (s *RaffleService) Counts(ctx context.Context) (domain.TicketCounts, error) {
	counts, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return domain.TicketCounts{}, fmt.Errorf("s.tickets.CountByStatus -> %w", err)
	}
	counts.Price = s.price

	return counts, nil
}

// Select adds the number to the user's selection. A ticket that is missing
// or not available is silently ignored; nothing non-available can enter a
// selection.
func (s *RaffleService) Select(ctx context.Context, userID uuid.UUID, number string) error {
	if s.sel.Contains(userID, number) {
		return nil
	}

	ticket, err := s.tickets.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil
		}

		return fmt.Errorf("s.tickets.FindByNumber -> %w", err)
	}
	if ticket.Status != domain.TicketAvailable {
		return nil
	}

	s.sel.Add(userID, number)

	return nil
}

func (s *RaffleService) Deselect(userID uuid.UUID, number string) {
	s.sel.Remove(userID, number)
}

func (s *RaffleService) Selection(userID uuid.UUID) []string {
	return s.sel.Numbers(userID)
}

func (s *RaffleService) ClearSelection(userID uuid.UUID) {
	s.sel.Clear(userID)
}

// PruneIdleSelections evicts every selection untouched past the configured
// TTL and returns how many users were dropped.
func (s *RaffleService) PruneIdleSelections() int {
	return s.sel.PruneIdle(s.selTTL)
}

// RunSelectionJanitor prunes idle selections on a fixed interval until ctx
// is done. Logout is client-side, so abandoned carts only go away here.
func (s *RaffleService) RunSelectionJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneIdleSelections(); n > 0 {
				zap.L().Info("pruned idle selections", zap.Int("users", n))
			}
		}
	}
}

// TotalValue is the price of the user's current selection.
func (s *RaffleService) TotalValue(userID uuid.UUID) float64 {
	return float64(s.sel.Len(userID)) * s.price
}

func (s *RaffleService) TicketPrice() float64 {
	return s.price
}

// Reserve transitions the caller's whole selection to reserved,
// all-or-nothing. On success the selection is cleared and the reserved
// numbers returned; on conflict nothing changes and the error lists the
// numbers that were already taken.
func (s *RaffleService) Reserve(ctx context.Context, user domain.User) ([]string, error) {
	numbers := s.sel.Numbers(user.ID)
	if len(numbers) == 0 {
		return nil, ErrEmptySelection
	}

	if err := s.tickets.Reserve(ctx, numbers, user.AsOwner()); err != nil {
		return nil, fmt.Errorf("s.tickets.Reserve -> %w", err)
	}

	s.sel.Clear(user.ID)

	return numbers, nil
}

// TakeHold locks the caller's selection behind a provisional payment hold.
// Tickets stay reserved until the hold is confirmed or released; the
// selection survives so a failed payment can be retried.
func (s *RaffleService) TakeHold(ctx context.Context, user domain.User, method domain.PaymentMethod) (domain.PaymentHold, error) {
	numbers := s.sel.Numbers(user.ID)
	if len(numbers) == 0 {
		return domain.PaymentHold{}, ErrEmptySelection
	}

	hold := domain.PaymentHold{
		ID:        uuid.New(),
		UserID:    user.ID,
		Numbers:   numbers,
		Status:    domain.HoldActive,
		Method:    method,
		Amount:    float64(len(numbers)) * s.price,
		ExpiresAt: time.Now().Add(s.holdTTL),
	}

	created, err := s.tickets.Hold(ctx, hold, user.AsOwner())
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("s.tickets.Hold -> %w", err)
	}

	return created, nil
}

// ConfirmHold settles a hold after gateway approval: tickets become
// purchased and the buyer's selection is cleared.
func (s *RaffleService) ConfirmHold(ctx context.Context, holdID uuid.UUID) (domain.PaymentHold, error) {
	hold, err := s.tickets.ConfirmHold(ctx, holdID)
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("s.tickets.ConfirmHold -> %w", err)
	}

	s.sel.Clear(hold.UserID)

	return hold, nil
}

// ReleaseHold returns a hold's tickets to available with owners cleared.
func (s *RaffleService) ReleaseHold(ctx context.Context, holdID uuid.UUID, terminal domain.HoldStatus) error {
	if err := s.tickets.ReleaseHold(ctx, holdID, terminal); err != nil {
		return fmt.Errorf("s.tickets.ReleaseHold -> %w", err)
	}

	return nil
}

func (s *RaffleService) FindHold(ctx context.Context, holdID uuid.UUID) (domain.PaymentHold, error) {
	hold, err := s.tickets.FindHoldByID(ctx, holdID)
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("s.tickets.FindHoldByID -> %w", err)
	}

	return hold, nil
}

func (s *RaffleService) FindHoldByProviderRef(ctx context.Context, ref string) (domain.PaymentHold, error) {
	hold, err := s.tickets.FindHoldByProviderRef(ctx, ref)
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("s.tickets.FindHoldByProviderRef -> %w", err)
	}

	return hold, nil
}

func (s *RaffleService) ExpiredHolds(ctx context.Context, now time.Time) ([]domain.PaymentHold, error) {
	holds, err := s.tickets.FindExpiredHolds(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("s.tickets.FindExpiredHolds -> %w", err)
	}

	return holds, nil
}

func (s *RaffleService) SetHoldProviderRef(ctx context.Context, holdID uuid.UUID, ref string) error {
	if err := s.tickets.SetHoldProviderRef(ctx, holdID, ref); err != nil {
		return fmt.Errorf("s.tickets.SetHoldProviderRef -> %w", err)
	}

	return nil
}

// SetStatus is the admin override. Admin status is re-checked here against
// the server-side user record, never a client-supplied flag.
func (s *RaffleService) SetStatus(ctx context.Context, number string, status domain.TicketStatus, actor domain.User) (domain.Ticket, error) {
	if !actor.IsAdmin {
		return domain.Ticket{}, ErrNotAdmin
	}

	switch status {
	case domain.TicketAvailable, domain.TicketReserved, domain.TicketPurchased:
	default:
		return domain.Ticket{}, ErrInvalidStatus
	}

	ticket, err := s.tickets.SetStatus(ctx, number, status)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("s.tickets.SetStatus -> %w", err)
	}

	return ticket, nil
}

// AssignOwner forces the ticket to purchased under an arbitrary existing
// user. Admin only.
func (s *RaffleService) AssignOwner(ctx context.Context, number string, targetUserID uuid.UUID, actor domain.User) (domain.Ticket, error) {
	if !actor.IsAdmin {
		return domain.Ticket{}, ErrNotAdmin
	}

	target, err := s.users.FindByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.Ticket{}, ErrUserNotFound
		}

		return domain.Ticket{}, fmt.Errorf("s.users.FindByID -> %w", err)
	}

	ticket, err := s.tickets.AssignOwner(ctx, number, target)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("s.tickets.AssignOwner -> %w", err)
	}

	return ticket, nil
}

// ResetAll is the bulk administrative reset: every ticket back to
// available, every purchased cache emptied.
func (s *RaffleService) ResetAll(ctx context.Context, actor domain.User) error {
	if !actor.IsAdmin {
		return ErrNotAdmin
	}

	if err := s.tickets.ResetAll(ctx); err != nil {
		return fmt.Errorf("s.tickets.ResetAll -> %w", err)
	}

	return nil
}
