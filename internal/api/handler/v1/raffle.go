package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/casa-rifa/raffle-api/internal/api/handler/v1/request"
	"github.com/casa-rifa/raffle-api/internal/api/handler/v1/response"
	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/service"
)

type RaffleService interface {
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
	Counts(ctx context.Context) (domain.TicketCounts, error)
	Select(ctx context.Context, userID uuid.UUID, number string) error
	Deselect(userID uuid.UUID, number string)
	Selection(userID uuid.UUID) []string
	ClearSelection(userID uuid.UUID)
	TotalValue(userID uuid.UUID) float64
	Reserve(ctx context.Context, user domain.User) ([]string, error)
	SetStatus(ctx context.Context, number string, status domain.TicketStatus, actor domain.User) (domain.Ticket, error)
	AssignOwner(ctx context.Context, number string, targetUserID uuid.UUID, actor domain.User) (domain.Ticket, error)
	ResetAll(ctx context.Context, actor domain.User) error
}

type RaffleHandler struct {
	svc  RaffleService
	uSvc UserService
}

func NewRaffleHandler(svc RaffleService, uSvc UserService) *RaffleHandler {
	return &RaffleHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleListTickets godoc
// @Summary      List all tickets
// @Description  Full catalog snapshot ordered by number.
// @Tags         tickets
// @Produce      json
// @Success      200  {array}   domain.Ticket
// @Failure      500  {object}  response.Err
// @Router       /tickets [get]
func (h *RaffleHandler) HandleListTickets(ctx *gin.Context) {
	tickets, err := h.svc.ListTickets(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleListTickets -> h.svc.ListTickets -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, tickets)
}

// HandleCounts godoc
// @Summary      Ticket counts by status
// @Tags         tickets
// @Produce      json
// @Success      200  {object}  domain.TicketCounts
// @Failure      500  {object}  response.Err
// @Router       /tickets/counts [get]
func (h *RaffleHandler) HandleCounts(ctx *gin.Context) {
	counts, err := h.svc.Counts(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleCounts -> h.svc.Counts -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, counts)
}

// HandleSelect godoc
// @Summary      Add a ticket to the caller's selection
// @Description  Silently ignores tickets that are not available.
// @Tags         selection
// @Produce      json
// @Param        number   path       string true "ticket number"
// @Success      200      {object}   response.SelectionResponse
// @Failure      401      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /selection/{number} [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleSelect(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.Select(ctx.Request.Context(), user.ID, ctx.Param("number")); err != nil {
		err = fmt.Errorf("v1.HandleSelect -> h.svc.Select -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	h.renderSelection(ctx, user.ID)
}

// HandleDeselect godoc
// @Summary      Remove a ticket from the caller's selection
// @Tags         selection
// @Produce      json
// @Param        number   path       string true "ticket number"
// @Success      200      {object}   response.SelectionResponse
// @Failure      401      {object}   response.Err
// @Router       /selection/{number} [delete]
// @Security BearerAuth
func (h *RaffleHandler) HandleDeselect(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	h.svc.Deselect(user.ID, ctx.Param("number"))

	h.renderSelection(ctx, user.ID)
}

// HandleGetSelection godoc
// @Summary      The caller's current selection
// @Tags         selection
// @Produce      json
// @Success      200  {object}  response.SelectionResponse
// @Failure      401  {object}  response.Err
// @Router       /selection [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleGetSelection(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	h.renderSelection(ctx, user.ID)
}

// HandleClearSelection godoc
// @Summary      Clear the caller's selection
// @Tags         selection
// @Produce      json
// @Success      200  {object}  response.SelectionResponse
// @Failure      401  {object}  response.Err
// @Router       /selection [delete]
// @Security BearerAuth
func (h *RaffleHandler) HandleClearSelection(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	h.svc.ClearSelection(user.ID)

	h.renderSelection(ctx, user.ID)
}

// HandleReserve godoc
// @Summary      Reserve the caller's selected tickets
// @Description  All-or-nothing: if any selected ticket is no longer
// @Description  available the whole call fails and reports the conflicts.
// @Tags         tickets
// @Produce      json
// @Success      200  {object}  response.ReserveResponse
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      409  {object}  response.ConflictResponse
// @Failure      500  {object}  response.Err
// @Router       /tickets/reserve [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleReserve(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	reserved, err := h.svc.Reserve(ctx.Request.Context(), user)
	if err != nil {
		var conflict *service.TicketsConflictError
		switch {
		case errors.Is(err, service.ErrEmptySelection):
			response.RenderErr(ctx, response.ErrBadRequest(service.ErrEmptySelection))
		case errors.As(err, &conflict):
			ctx.AbortWithStatusJSON(http.StatusConflict, response.ConflictResponse{
				Message:   conflict.Error(),
				Conflicts: conflict.Numbers,
			})
		default:
			err = fmt.Errorf("v1.HandleReserve -> h.svc.Reserve -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, response.ReserveResponse{Reserved: reserved})
}

// HandleSetStatus godoc
// @Summary      Admin override of a ticket's status
// @Description  Setting available clears the owner; other statuses keep it.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        number   path       string true "ticket number"
// @Param        request  body       request.SetStatusRequest true "request body"
// @Success      200      {object}   domain.Ticket
// @Failure      400      {object}   response.Err
// @Failure      401      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /admin/tickets/{number}/status [put]
// @Security BearerAuth
func (h *RaffleHandler) HandleSetStatus(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	number := ctx.Param("number")
	ticket, err := h.svc.SetStatus(ctx.Request.Context(), number, domain.TicketStatus(req.Status), user)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAdmin):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		case errors.Is(err, service.ErrTicketNotFound):
			response.RenderErr(ctx, response.ErrNotFound("ticket", "number", number))
		case errors.Is(err, service.ErrInvalidStatus):
			response.RenderErr(ctx, response.ErrBadRequest(service.ErrInvalidStatus))
		default:
			err = fmt.Errorf("v1.HandleSetStatus -> h.svc.SetStatus -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

// HandleAssignOwner godoc
// @Summary      Admin assignment of a ticket to a user
// @Description  Forces the ticket to purchased under the given user.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        number   path       string true "ticket number"
// @Param        request  body       request.AssignOwnerRequest true "request body"
// @Success      200      {object}   domain.Ticket
// @Failure      400      {object}   response.Err
// @Failure      401      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /admin/tickets/{number}/owner [put]
// @Security BearerAuth
func (h *RaffleHandler) HandleAssignOwner(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.AssignOwnerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid user ID")))
		return
	}

	number := ctx.Param("number")
	ticket, err := h.svc.AssignOwner(ctx.Request.Context(), number, targetID, user)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAdmin):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		case errors.Is(err, service.ErrUserNotFound):
			response.RenderErr(ctx, response.ErrNotFound("user", "ID", req.UserID))
		case errors.Is(err, service.ErrTicketNotFound):
			response.RenderErr(ctx, response.ErrNotFound("ticket", "number", number))
		default:
			err = fmt.Errorf("v1.HandleAssignOwner -> h.svc.AssignOwner -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

// HandleReset godoc
// @Summary      Admin bulk reset of the whole inventory
// @Tags         admin
// @Produce      json
// @Success      204
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /admin/tickets/reset [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleReset(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.ResetAll(ctx.Request.Context(), user); err != nil {
		if errors.Is(err, service.ErrNotAdmin) {
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
			return
		}

		err = fmt.Errorf("v1.HandleReset -> h.svc.ResetAll -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *RaffleHandler) renderSelection(ctx *gin.Context, userID uuid.UUID) {
	ctx.JSON(http.StatusOK, response.SelectionResponse{
		Numbers:    h.svc.Selection(userID),
		TotalValue: h.svc.TotalValue(userID),
	})
}
