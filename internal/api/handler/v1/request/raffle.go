package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type SetStatusRequest struct {
	Status string `json:"status"`
}

func (req *SetStatusRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Status, validation.Required,
			validation.In("available", "reserved", "purchased")),
	)
}

type AssignOwnerRequest struct {
	UserID string `json:"user_id"`
}

func (req *AssignOwnerRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.UserID, validation.Required, is.UUIDv4),
	)
}

type CheckoutRequest struct {
	Method string `json:"method"`
}

func (req *CheckoutRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Method, validation.Required, validation.In("pix", "card")),
	)
}

// WebhookRequest is the shape Mercado Pago posts on payment updates; only
// the payment ID is used, the status is re-fetched from the provider.
type WebhookRequest struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}
