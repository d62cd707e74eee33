// Package mercadopago is the narrow client for the payment provider. The
// core only needs three things from it: a redirect URL for card checkout,
// a scannable PIX code, and a pending/approved/rejected answer for a
// payment it created earlier.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/casa-rifa/raffle-api/internal/config"
	"github.com/casa-rifa/raffle-api/internal/domain"
)

// GatewayError reports a failed or malformed provider response.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mercadopago: unexpected response %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL         string
	accessToken     string
	notificationURL string
	httpClient      *http.Client
}

func NewClient(conf *config.MercadoPagoConfig) *Client {
	return &Client{
		baseURL:         conf.BaseURL,
		accessToken:     conf.AccessToken,
		notificationURL: conf.NotificationURL,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
	}
}

type Payer struct {
	Email          string         `json:"email"`
	Identification Identification `json:"identification,omitempty"`
}

type Identification struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

type PreferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Preference is the card/redirect flow: the caller sends the buyer to
// InitPoint to finish checkout on the provider's page.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// PixPayment carries the copy-and-paste PIX payload plus a base64 PNG
// rendering of it for direct embedding.
type PixPayment struct {
	ID           string `json:"id"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

// Payment is the provider's view of a payment, as returned by GetPayment.
type Payment struct {
	ID                string
	Status            domain.PaymentStatus
	ExternalReference string
}

func (c *Client) CreatePreference(ctx context.Context, externalRef string, items []PreferenceItem) (Preference, error) {
	body := map[string]any{
		"items":              items,
		"external_reference": externalRef,
		"notification_url":   c.notificationURL,
	}

	var resp struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := c.post(ctx, "/checkout/preferences", body, &resp); err != nil {
		return Preference{}, fmt.Errorf("c.post -> %w", err)
	}

	return Preference{ID: resp.ID, InitPoint: resp.InitPoint}, nil
}

func (c *Client) CreatePixPayment(ctx context.Context, externalRef string, amount float64, description string, payer Payer) (PixPayment, error) {
	body := map[string]any{
		"transaction_amount": amount,
		"description":        description,
		"payment_method_id":  "pix",
		"payer":              payer,
		"external_reference": externalRef,
		"notification_url":   c.notificationURL,
	}

	var resp struct {
		ID                 json.Number `json:"id"`
		PointOfInteraction struct {
			TransactionData struct {
				QRCode string `json:"qr_code"`
			} `json:"transaction_data"`
		} `json:"point_of_interaction"`
	}
	if err := c.post(ctx, "/v1/payments", body, &resp); err != nil {
		return PixPayment{}, fmt.Errorf("c.post -> %w", err)
	}

	payload := resp.PointOfInteraction.TransactionData.QRCode
	if payload == "" {
		return PixPayment{}, &GatewayError{StatusCode: http.StatusOK, Body: "missing pix qr_code"}
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return PixPayment{}, fmt.Errorf("qrcode.Encode -> %w", err)
	}

	return PixPayment{
		ID:           resp.ID.String(),
		QRCode:       payload,
		QRCodeBase64: base64.StdEncoding.EncodeToString(png),
	}, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Payment{}, fmt.Errorf("c.httpClient.Do -> %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payment{}, fmt.Errorf("io.ReadAll -> %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Payment{}, &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var body struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		ExternalReference string      `json:"external_reference"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Payment{}, fmt.Errorf("json.Unmarshal -> %w", err)
	}

	return Payment{
		ID:                body.ID.String(),
		Status:            mapStatus(body.Status),
		ExternalReference: body.ExternalReference,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("c.httpClient.Do -> %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("io.ReadAll -> %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("json.Unmarshal -> %w", err)
	}

	return nil
}

func mapStatus(s string) domain.PaymentStatus {
	switch s {
	case "approved":
		return domain.PaymentApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.PaymentRejected
	default:
		return domain.PaymentPending
	}
}
