package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casa-rifa/raffle-api/internal/api/middleware"
	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/repository"
	"github.com/casa-rifa/raffle-api/internal/service"
)

type fakeUserSvc struct {
	users map[uuid.UUID]domain.User
}

func (s *fakeUserSvc) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, service.ErrUserNotFound
	}

	return user, nil
}

func (s *fakeUserSvc) ListUsers(_ context.Context) ([]domain.User, error) {
	all := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}

	return all, nil
}

type fakeRaffleSvc struct {
	tickets    []domain.Ticket
	counts     domain.TicketCounts
	selection  []string
	reserveErr error
	setErr     error
	assignErr  error
	ticket     domain.Ticket
}

func (s *fakeRaffleSvc) ListTickets(_ context.Context) ([]domain.Ticket, error) {
	return s.tickets, nil
}

func (s *fakeRaffleSvc) Counts(_ context.Context) (domain.TicketCounts, error) {
	return s.counts, nil
}

func (s *fakeRaffleSvc) Select(_ context.Context, _ uuid.UUID, number string) error {
	s.selection = append(s.selection, number)
	return nil
}

func (s *fakeRaffleSvc) Deselect(_ uuid.UUID, number string) {
	kept := s.selection[:0]
	for _, n := range s.selection {
		if n != number {
			kept = append(kept, n)
		}
	}
	s.selection = kept
}

func (s *fakeRaffleSvc) Selection(_ uuid.UUID) []string {
	return s.selection
}

func (s *fakeRaffleSvc) ClearSelection(_ uuid.UUID) {
	s.selection = nil
}

func (s *fakeRaffleSvc) TotalValue(_ uuid.UUID) float64 {
	return float64(len(s.selection))
}

func (s *fakeRaffleSvc) Reserve(_ context.Context, _ domain.User) ([]string, error) {
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	reserved := s.selection
	s.selection = nil

	return reserved, nil
}

func (s *fakeRaffleSvc) SetStatus(_ context.Context, _ string, _ domain.TicketStatus, actor domain.User) (domain.Ticket, error) {
	if !actor.IsAdmin {
		return domain.Ticket{}, service.ErrNotAdmin
	}
	if s.setErr != nil {
		return domain.Ticket{}, s.setErr
	}

	return s.ticket, nil
}

func (s *fakeRaffleSvc) AssignOwner(_ context.Context, _ string, _ uuid.UUID, actor domain.User) (domain.Ticket, error) {
	if !actor.IsAdmin {
		return domain.Ticket{}, service.ErrNotAdmin
	}
	if s.assignErr != nil {
		return domain.Ticket{}, s.assignErr
	}

	return s.ticket, nil
}

func (s *fakeRaffleSvc) ResetAll(_ context.Context, actor domain.User) error {
	if !actor.IsAdmin {
		return service.ErrNotAdmin
	}

	return nil
}

// asUser injects an authenticated user ID the way the JWT middleware does.
func asUser(id uuid.UUID) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(middleware.ContextKeyUserID, id)
		ctx.Next()
	}
}

func newRaffleTestRouter(svc RaffleService, uSvc UserService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewRaffleHandler(svc, uSvc)
	router.GET("/api/v1/tickets", handler.HandleListTickets)
	router.GET("/api/v1/tickets/counts", handler.HandleCounts)

	authed := router.Group("/api/v1", asUser(userID))
	authed.GET("/selection", handler.HandleGetSelection)
	authed.DELETE("/selection", handler.HandleClearSelection)
	authed.POST("/selection/:number", handler.HandleSelect)
	authed.DELETE("/selection/:number", handler.HandleDeselect)
	authed.POST("/tickets/reserve", handler.HandleReserve)
	authed.PUT("/admin/tickets/:number/status", handler.HandleSetStatus)
	authed.PUT("/admin/tickets/:number/owner", handler.HandleAssignOwner)
	authed.POST("/admin/tickets/reset", handler.HandleReset)

	return router
}

func raffleFixture(isAdmin bool) (*fakeRaffleSvc, *fakeUserSvc, domain.User) {
	user := domain.User{ID: uuid.New(), Name: "Ana", IsAdmin: isAdmin}
	uSvc := &fakeUserSvc{users: map[uuid.UUID]domain.User{user.ID: user}}
	svc := &fakeRaffleSvc{
		tickets: []domain.Ticket{{Number: "001", Status: domain.TicketAvailable}},
		ticket:  domain.Ticket{Number: "001", Status: domain.TicketPurchased},
	}

	return svc, uSvc, user
}

func TestHandleListTickets(t *testing.T) {
	svc, uSvc, user := raffleFixture(false)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var tickets []domain.Ticket
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, "001", tickets[0].Number)
}

func TestHandleSelectionFlow(t *testing.T) {
	svc, uSvc, user := raffleFixture(false)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/selection/042", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"numbers":["042"],"total_value":1}`, resp.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/selection/042", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"numbers":[],"total_value":0}`, resp.Body.String())
}

func TestHandleReserve_Conflict(t *testing.T) {
	svc, uSvc, user := raffleFixture(false)
	svc.reserveErr = &repository.TicketsConflictError{Numbers: []string{"042"}}
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/reserve", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), `"conflicts":["042"]`)
}

func TestHandleReserve_EmptySelection(t *testing.T) {
	svc, uSvc, user := raffleFixture(false)
	svc.reserveErr = service.ErrEmptySelection
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/reserve", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleSetStatus_NonAdmin(t *testing.T) {
	svc, uSvc, user := raffleFixture(false)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	body := `{"status":"available"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tickets/001/status", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestHandleSetStatus_Admin(t *testing.T) {
	svc, uSvc, user := raffleFixture(true)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	body := `{"status":"purchased"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tickets/001/status", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"number":"001"`)
}

func TestHandleSetStatus_BadStatus(t *testing.T) {
	svc, uSvc, user := raffleFixture(true)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	body := `{"status":"burned"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tickets/001/status", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleAssignOwner_UnknownUser(t *testing.T) {
	svc, uSvc, user := raffleFixture(true)
	svc.assignErr = service.ErrUserNotFound
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	body := `{"user_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tickets/001/owner", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleAssignOwner_Admin(t *testing.T) {
	svc, uSvc, user := raffleFixture(true)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	body := `{"user_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/tickets/001/owner", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"purchased"`)
}

func TestHandleReset(t *testing.T) {
	svc, uSvc, user := raffleFixture(true)
	router := newRaffleTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/tickets/reset", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
}

type fakePaymentSvc struct {
	result    service.CheckoutResult
	checkErr  error
	notifyErr error
	cancelErr error

	notified []string
}

func (s *fakePaymentSvc) Checkout(_ context.Context, _ domain.User, method domain.PaymentMethod) (service.CheckoutResult, error) {
	if s.checkErr != nil {
		return service.CheckoutResult{}, s.checkErr
	}
	s.result.Method = method

	return s.result, nil
}

func (s *fakePaymentSvc) HandleNotification(_ context.Context, paymentID string) error {
	s.notified = append(s.notified, paymentID)
	return s.notifyErr
}

func (s *fakePaymentSvc) Cancel(_ context.Context, _ domain.User, _ uuid.UUID) error {
	return s.cancelErr
}

func newPaymentTestRouter(svc PaymentService, uSvc UserService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewPaymentHandler(svc, uSvc)
	router.POST("/api/v1/payments/webhook", handler.HandleWebhook)

	authed := router.Group("/api/v1", asUser(userID))
	authed.POST("/payments", handler.HandleCheckout)
	authed.DELETE("/payments/:holdID", handler.HandleCancel)

	return router
}

func TestHandleCheckout(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	svc := &fakePaymentSvc{result: service.CheckoutResult{
		HoldID:    uuid.New(),
		Numbers:   []string{"001"},
		Amount:    1.0,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		QRCode:    "copia-e-cola",
	}}
	router := newPaymentTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"method":"pix"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), `"qr_code":"copia-e-cola"`)
}

func TestHandleCheckout_BadMethod(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	router := newPaymentTestRouter(&fakePaymentSvc{}, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"method":"boleto"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleCheckout_GatewayDown(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	svc := &fakePaymentSvc{checkErr: service.ErrGatewayUnavailable}
	router := newPaymentTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"method":"pix"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestHandleWebhook(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	svc := &fakePaymentSvc{}
	router := newPaymentTestRouter(svc, uSvc, user.ID)

	body := `{"type":"payment","data":{"id":"12345"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"12345"}, svc.notified)
}

func TestHandleWebhook_IgnoresOtherEvents(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	svc := &fakePaymentSvc{}
	router := newPaymentTestRouter(svc, uSvc, user.ID)

	body := `{"type":"plan","data":{"id":"67890"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, svc.notified)
}

func TestHandleWebhook_UnknownReferenceStillAcknowledged(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	svc := &fakePaymentSvc{notifyErr: service.ErrUnknownPaymentRef}
	router := newPaymentTestRouter(svc, uSvc, user.ID)

	body := `{"type":"payment","data":{"id":"not-ours"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHandleCancel_Forbidden(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	svc := &fakePaymentSvc{cancelErr: service.ErrHoldForbidden}
	router := newPaymentTestRouter(svc, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/payments/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestHandleCancel(t *testing.T) {
	_, uSvc, user := raffleFixture(false)
	router := newPaymentTestRouter(&fakePaymentSvc{}, uSvc, user.ID)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/payments/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
}
