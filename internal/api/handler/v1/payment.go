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

type PaymentService interface {
	Checkout(ctx context.Context, user domain.User, method domain.PaymentMethod) (service.CheckoutResult, error)
	HandleNotification(ctx context.Context, paymentID string) error
	Cancel(ctx context.Context, actor domain.User, holdID uuid.UUID) error
}

type PaymentHandler struct {
	svc  PaymentService
	uSvc UserService
}

func NewPaymentHandler(svc PaymentService, uSvc UserService) *PaymentHandler {
	return &PaymentHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleCheckout godoc
// @Summary      Open a payment for the caller's selected tickets
// @Description  Places a provisional hold over the selection and opens a
// @Description  gateway payment. The hold expires if the buyer never pays.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request  body       request.CheckoutRequest true "request body"
// @Success      201      {object}   service.CheckoutResult
// @Failure      400      {object}   response.Err
// @Failure      401      {object}   response.Err
// @Failure      409      {object}   response.ConflictResponse
// @Failure      502      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /payments [post]
// @Security BearerAuth
func (h *PaymentHandler) HandleCheckout(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.Checkout(ctx.Request.Context(), user, domain.PaymentMethod(req.Method))
	if err != nil {
		var conflict *service.TicketsConflictError
		switch {
		case errors.Is(err, service.ErrEmptySelection):
			response.RenderErr(ctx, response.ErrBadRequest(service.ErrEmptySelection))
		case errors.Is(err, service.ErrUnsupportedMethod):
			response.RenderErr(ctx, response.ErrBadRequest(service.ErrUnsupportedMethod))
		case errors.As(err, &conflict):
			ctx.AbortWithStatusJSON(http.StatusConflict, response.ConflictResponse{
				Message:   conflict.Error(),
				Conflicts: conflict.Numbers,
			})
		case errors.Is(err, service.ErrGatewayUnavailable):
			err = fmt.Errorf("v1.HandleCheckout -> h.svc.Checkout -> %w", err)
			response.RenderErr(ctx, response.ErrBadGateway(err))
		default:
			err = fmt.Errorf("v1.HandleCheckout -> h.svc.Checkout -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusCreated, result)
}

// HandleWebhook godoc
// @Summary      Payment gateway notification endpoint
// @Description  Settles or releases the hold the payment references.
// @Description  Non-payment event types are acknowledged and ignored.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request  body  request.WebhookRequest true "notification"
// @Success      200
// @Failure      400  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /payments/webhook [post]
func (h *PaymentHandler) HandleWebhook(ctx *gin.Context) {
	var req request.WebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if req.Type != "payment" || req.Data.ID == "" {
		ctx.Status(http.StatusOK)
		return
	}

	if err := h.svc.HandleNotification(ctx.Request.Context(), req.Data.ID); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPaymentRef):
			// Not ours. Acknowledge so the gateway stops retrying.
			ctx.Status(http.StatusOK)
		case errors.Is(err, service.ErrHoldNotActive):
			// Already settled or swept; the notification is a replay.
			ctx.Status(http.StatusOK)
		default:
			err = fmt.Errorf("v1.HandleWebhook -> h.svc.HandleNotification -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.Status(http.StatusOK)
}

// HandleCancel godoc
// @Summary      Cancel an open checkout
// @Description  Releases the hold and frees its tickets. Only the hold's
// @Description  owner or an admin may cancel.
// @Tags         payments
// @Produce      json
// @Param        holdID   path  string true "hold ID"
// @Success      204
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /payments/{holdID} [delete]
// @Security BearerAuth
func (h *PaymentHandler) HandleCancel(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	holdID, err := uuid.Parse(ctx.Param("holdID"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid hold ID")))
		return
	}

	if err := h.svc.Cancel(ctx.Request.Context(), user, holdID); err != nil {
		switch {
		case errors.Is(err, service.ErrHoldForbidden):
			response.RenderErr(ctx, response.ErrPermissionDenied(service.ErrHoldForbidden))
		case errors.Is(err, service.ErrHoldNotFound):
			response.RenderErr(ctx, response.ErrNotFound("hold", "ID", ctx.Param("holdID")))
		case errors.Is(err, service.ErrHoldNotActive):
			response.RenderErr(ctx, response.ErrConflict(service.ErrHoldNotActive))
		default:
			err = fmt.Errorf("v1.HandleCancel -> h.svc.Cancel -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}
