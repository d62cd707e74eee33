package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/repository/dao"
)

var (
	ErrTicketNotFound = dao.ErrTicketNotFound
	ErrHoldNotFound   = dao.ErrHoldNotFound
	ErrHoldNotActive  = dao.ErrHoldNotActive
)

// TicketsConflictError is surfaced unchanged from the DAO so callers can
// report which numbers were already taken.
type TicketsConflictError = dao.TicketsConflictError

type TicketDAO interface {
	FindAll(ctx context.Context) ([]dao.Ticket, error)
	FindByNumber(ctx context.Context, number string) (dao.Ticket, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Reserve(ctx context.Context, numbers []string, owner dao.TicketOwner) error
	Hold(ctx context.Context, hold dao.PaymentHold, owner dao.TicketOwner) (dao.PaymentHold, error)
	ConfirmHold(ctx context.Context, holdID uuid.UUID) (dao.PaymentHold, error)
	ReleaseHold(ctx context.Context, holdID uuid.UUID, terminal string) error
	SetStatus(ctx context.Context, number, status string) (dao.Ticket, error)
	AssignOwner(ctx context.Context, number string, user dao.User) (dao.Ticket, error)
	ResetAll(ctx context.Context) error
}

type HoldDAO interface {
	FindByID(ctx context.Context, id uuid.UUID) (dao.PaymentHold, error)
	FindByProviderRef(ctx context.Context, ref string) (dao.PaymentHold, error)
	FindExpired(ctx context.Context, now time.Time) ([]dao.PaymentHold, error)
	UpdateProviderRef(ctx context.Context, id uuid.UUID, ref string) error
}

type TicketRepository struct {
	dao     TicketDAO
	holdDAO HoldDAO
}

func NewTicketRepository(dao TicketDAO, holdDAO HoldDAO) *TicketRepository {
	return &TicketRepository{
		dao:     dao,
		holdDAO: holdDAO,
	}
}

func (r *TicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	found, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindAll -> %w", err)
	}

	tickets := make([]domain.Ticket, 0, len(found))
	for _, t := range found {
		tickets = append(tickets, ticketDaoToDomain(t))
	}

	return tickets, nil
}

func (r *TicketRepository) FindByNumber(ctx context.Context, number string) (domain.Ticket, error) {
	found, err := r.dao.FindByNumber(ctx, number)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("r.dao.FindByNumber -> %w", err)
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketRepository) CountByStatus(ctx context.Context) (domain.TicketCounts, error) {
	counts, err := r.dao.CountByStatus(ctx)
	if err != nil {
		return domain.TicketCounts{}, fmt.Errorf("r.dao.CountByStatus -> %w", err)
	}

	c := domain.TicketCounts{
		Available: counts[string(domain.TicketAvailable)],
		Reserved:  counts[string(domain.TicketReserved)],
		Purchased: counts[string(domain.TicketPurchased)],
	}
	c.Total = c.Available + c.Reserved + c.Purchased

	return c, nil
}

func (r *TicketRepository) Reserve(ctx context.Context, numbers []string, owner domain.Owner) error {
	if err := r.dao.Reserve(ctx, numbers, ownerDomainToDao(owner)); err != nil {
		return fmt.Errorf("r.dao.Reserve -> %w", err)
	}

	return nil
}

func (r *TicketRepository) Hold(ctx context.Context, hold domain.PaymentHold, owner domain.Owner) (domain.PaymentHold, error) {
	created, err := r.dao.Hold(ctx, holdDomainToDao(hold), ownerDomainToDao(owner))
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("r.dao.Hold -> %w", err)
	}

	return holdDaoToDomain(created), nil
}

func (r *TicketRepository) ConfirmHold(ctx context.Context, holdID uuid.UUID) (domain.PaymentHold, error) {
	confirmed, err := r.dao.ConfirmHold(ctx, holdID)
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("r.dao.ConfirmHold -> %w", err)
	}

	return holdDaoToDomain(confirmed), nil
}

func (r *TicketRepository) ReleaseHold(ctx context.Context, holdID uuid.UUID, terminal domain.HoldStatus) error {
	if err := r.dao.ReleaseHold(ctx, holdID, string(terminal)); err != nil {
		return fmt.Errorf("r.dao.ReleaseHold -> %w", err)
	}

	return nil
}

func (r *TicketRepository) SetStatus(ctx context.Context, number string, status domain.TicketStatus) (domain.Ticket, error) {
	updated, err := r.dao.SetStatus(ctx, number, string(status))
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("r.dao.SetStatus -> %w", err)
	}

	return ticketDaoToDomain(updated), nil
}

func (r *TicketRepository) AssignOwner(ctx context.Context, number string, user domain.User) (domain.Ticket, error) {
	updated, err := r.dao.AssignOwner(ctx, number, dao.User{
		ID:    user.ID,
		Name:  user.Name,
		Phone: user.Phone,
		Rg:    user.Rg,
	})
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("r.dao.AssignOwner -> %w", err)
	}

	return ticketDaoToDomain(updated), nil
}

func (r *TicketRepository) ResetAll(ctx context.Context) error {
	if err := r.dao.ResetAll(ctx); err != nil {
		return fmt.Errorf("r.dao.ResetAll -> %w", err)
	}

	return nil
}

func (r *TicketRepository) FindHoldByID(ctx context.Context, id uuid.UUID) (domain.PaymentHold, error) {
	found, err := r.holdDAO.FindByID(ctx, id)
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("r.holdDAO.FindByID -> %w", err)
	}

	return holdDaoToDomain(found), nil
}

func (r *TicketRepository) FindHoldByProviderRef(ctx context.Context, ref string) (domain.PaymentHold, error) {
	found, err := r.holdDAO.FindByProviderRef(ctx, ref)
	if err != nil {
		return domain.PaymentHold{}, fmt.Errorf("r.holdDAO.FindByProviderRef -> %w", err)
	}

	return holdDaoToDomain(found), nil
}

func (r *TicketRepository) FindExpiredHolds(ctx context.Context, now time.Time) ([]domain.PaymentHold, error) {
	found, err := r.holdDAO.FindExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("r.holdDAO.FindExpired -> %w", err)
	}

	holds := make([]domain.PaymentHold, 0, len(found))
	for _, h := range found {
		holds = append(holds, holdDaoToDomain(h))
	}

	return holds, nil
}

func (r *TicketRepository) SetHoldProviderRef(ctx context.Context, id uuid.UUID, ref string) error {
	if err := r.holdDAO.UpdateProviderRef(ctx, id, ref); err != nil {
		return fmt.Errorf("r.holdDAO.UpdateProviderRef -> %w", err)
	}

	return nil
}

func ticketDaoToDomain(t dao.Ticket) domain.Ticket {
	return domain.Ticket{
		Number:     t.Number,
		Status:     domain.TicketStatus(t.Status),
		OwnerID:    t.OwnerID,
		OwnerName:  t.OwnerName,
		OwnerPhone: t.OwnerPhone,
		OwnerRg:    t.OwnerRg,
		HoldID:     t.HoldID,
	}
}

func ownerDomainToDao(o domain.Owner) dao.TicketOwner {
	return dao.TicketOwner{
		ID:    o.ID,
		Name:  o.Name,
		Phone: o.Phone,
		Rg:    o.Rg,
	}
}

func holdDomainToDao(h domain.PaymentHold) dao.PaymentHold {
	return dao.PaymentHold{
		ID:          h.ID,
		UserID:      h.UserID,
		Numbers:     h.Numbers,
		Status:      string(h.Status),
		Method:      string(h.Method),
		Amount:      h.Amount,
		ProviderRef: h.ProviderRef,
		ExpiresAt:   h.ExpiresAt,
	}
}

func holdDaoToDomain(h dao.PaymentHold) domain.PaymentHold {
	return domain.PaymentHold{
		ID:          h.ID,
		UserID:      h.UserID,
		Numbers:     h.Numbers,
		Status:      domain.HoldStatus(h.Status),
		Method:      domain.PaymentMethod(h.Method),
		Amount:      h.Amount,
		ProviderRef: h.ProviderRef,
		ExpiresAt:   h.ExpiresAt,
		CreatedAt:   h.CreatedAt,
	}
}
