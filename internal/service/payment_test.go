package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/gateway/mercadopago"
)

type fakeGateway struct {
	pixErr  error
	prefErr error

	payment    mercadopago.Payment
	paymentErr error

	pixCalls  int
	prefCalls int
}

func (g *fakeGateway) CreatePreference(_ context.Context, externalRef string, _ []mercadopago.PreferenceItem) (mercadopago.Preference, error) {
	g.prefCalls++
	if g.prefErr != nil {
		return mercadopago.Preference{}, g.prefErr
	}

	return mercadopago.Preference{ID: "pref-" + externalRef, InitPoint: "https://pay.example/" + externalRef}, nil
}

func (g *fakeGateway) CreatePixPayment(_ context.Context, externalRef string, _ float64, _ string, _ mercadopago.Payer) (mercadopago.PixPayment, error) {
	g.pixCalls++
	if g.pixErr != nil {
		return mercadopago.PixPayment{}, g.pixErr
	}

	return mercadopago.PixPayment{ID: "pix-" + externalRef, QRCode: "copia-e-cola", QRCodeBase64: "aW1n"}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, _ string) (mercadopago.Payment, error) {
	if g.paymentErr != nil {
		return mercadopago.Payment{}, g.paymentErr
	}

	return g.payment, nil
}

// paymentFixture wires a PaymentService over the in-memory repo with one
// user who already has numbers selected.
func paymentFixture(t *testing.T, numbers ...string) (*PaymentService, *RaffleService, *fakeTicketRepo, *fakeGateway, domain.User) {
	t.Helper()

	user := newTestUser("Ana")
	users := newFakeUserRepo(&user)
	repo := newFakeTicketRepo(users, numbers...)
	raffle := newTestRaffleService(repo, users)

	ctx := context.Background()
	for _, n := range numbers {
		require.NoError(t, raffle.Select(ctx, user.ID, n))
	}

	gateway := &fakeGateway{}
	svc := NewPaymentService(raffle, gateway, time.Minute)

	return svc, raffle, repo, gateway, user
}

func TestPaymentService_CheckoutPix(t *testing.T) {
	svc, _, repo, gateway, user := paymentFixture(t, "001", "002")

	result, err := svc.Checkout(context.Background(), user, domain.PaymentPix)
	require.NoError(t, err)

	assert.Equal(t, []string{"001", "002"}, result.Numbers)
	assert.Equal(t, 2.0, result.Amount)
	assert.Equal(t, "copia-e-cola", result.QRCode)
	assert.Equal(t, "aW1n", result.QRCodeBase64)
	assert.Empty(t, result.InitPoint)
	assert.Equal(t, 1, gateway.pixCalls)

	hold, err := repo.FindHoldByID(context.Background(), result.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldActive, hold.Status)
	assert.Equal(t, "pix-"+result.HoldID.String(), hold.ProviderRef)
}

func TestPaymentService_CheckoutCard(t *testing.T) {
	svc, _, _, gateway, user := paymentFixture(t, "001")

	result, err := svc.Checkout(context.Background(), user, domain.PaymentCard)
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/"+result.HoldID.String(), result.InitPoint)
	assert.Empty(t, result.QRCode)
	assert.Equal(t, 1, gateway.prefCalls)
}

func TestPaymentService_CheckoutConflictLeavesLoserUntouched(t *testing.T) {
	ana := newTestUser("Ana")
	bruno := newTestUser("Bruno")
	users := newFakeUserRepo(&ana, &bruno)
	repo := newFakeTicketRepo(users, "001", "002", "003")
	raffle := newTestRaffleService(repo, users)

	ctx := context.Background()
	for _, n := range []string{"001", "002"} {
		require.NoError(t, raffle.Select(ctx, ana.ID, n))
	}
	for _, n := range []string{"002", "003"} {
		require.NoError(t, raffle.Select(ctx, bruno.ID, n))
	}

	gateway := &fakeGateway{}
	svc := NewPaymentService(raffle, gateway, time.Minute)

	_, err := svc.Checkout(ctx, ana, domain.PaymentPix)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, bruno, domain.PaymentPix)
	require.Error(t, err)

	var conflict *TicketsConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"002"}, conflict.Numbers)

	// Only the winner's hold exists and the gateway was never asked to
	// charge the loser.
	assert.Len(t, repo.holds, 1)
	assert.Equal(t, 1, gateway.pixCalls)

	// The loser keeps the selection so a corrected retry can go through.
	assert.Equal(t, []string{"002", "003"}, raffle.Selection(bruno.ID))

	ticket, err := repo.FindByNumber(ctx, "003")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketAvailable, ticket.Status)
}

func TestPaymentService_CheckoutUnsupportedMethod(t *testing.T) {
	svc, _, _, _, user := paymentFixture(t, "001")

	_, err := svc.Checkout(context.Background(), user, domain.PaymentMethod("boleto"))

	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestPaymentService_CheckoutGatewayFailureReleasesHold(t *testing.T) {
	svc, raffle, repo, gateway, user := paymentFixture(t, "001", "002")
	gateway.pixErr = errBoom

	_, err := svc.Checkout(context.Background(), user, domain.PaymentPix)
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	// The hold was rolled back and the tickets freed for anyone.
	assert.Equal(t, domain.TicketAvailable, repo.tickets["001"].Status)
	assert.Equal(t, domain.TicketAvailable, repo.tickets["002"].Status)

	// The selection survives so the buyer can try again.
	assert.Equal(t, []string{"001", "002"}, raffle.Selection(user.ID))

	gateway.pixErr = nil
	_, err = svc.Checkout(context.Background(), user, domain.PaymentPix)
	assert.NoError(t, err)
}

func TestPaymentService_NotificationApprovedSettles(t *testing.T) {
	svc, raffle, repo, gateway, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	gateway.payment = mercadopago.Payment{
		ID:                "pix-1",
		Status:            domain.PaymentApproved,
		ExternalReference: result.HoldID.String(),
	}

	require.NoError(t, svc.HandleNotification(ctx, "pix-1"))

	assert.Equal(t, domain.TicketPurchased, repo.tickets["001"].Status)
	assert.Empty(t, raffle.Selection(user.ID))

	hold, err := repo.FindHoldByID(ctx, result.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldConfirmed, hold.Status)
}

func TestPaymentService_NotificationRejectedReleases(t *testing.T) {
	svc, _, repo, gateway, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	gateway.payment = mercadopago.Payment{
		ID:                "pix-1",
		Status:            domain.PaymentRejected,
		ExternalReference: result.HoldID.String(),
	}

	require.NoError(t, svc.HandleNotification(ctx, "pix-1"))

	assert.Equal(t, domain.TicketAvailable, repo.tickets["001"].Status)

	hold, err := repo.FindHoldByID(ctx, result.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldReleased, hold.Status)
}

func TestPaymentService_NotificationPendingIsNoOp(t *testing.T) {
	svc, _, repo, gateway, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	gateway.payment = mercadopago.Payment{
		ID:                "pix-1",
		Status:            domain.PaymentPending,
		ExternalReference: result.HoldID.String(),
	}

	require.NoError(t, svc.HandleNotification(ctx, "pix-1"))

	assert.Equal(t, domain.TicketReserved, repo.tickets["001"].Status)
}

func TestPaymentService_NotificationUnknownReference(t *testing.T) {
	svc, _, _, gateway, _ := paymentFixture(t, "001")
	gateway.payment = mercadopago.Payment{ID: "pix-9", Status: domain.PaymentApproved, ExternalReference: "not-a-hold"}

	err := svc.HandleNotification(context.Background(), "pix-9")

	assert.ErrorIs(t, err, ErrUnknownPaymentRef)
}

func TestPaymentService_NotificationByProviderRefFallback(t *testing.T) {
	svc, _, repo, gateway, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	// No external reference on the notification; only the payment ID
	// recorded at checkout links it back to the hold.
	gateway.payment = mercadopago.Payment{
		ID:     "pix-" + result.HoldID.String(),
		Status: domain.PaymentApproved,
	}

	require.NoError(t, svc.HandleNotification(ctx, gateway.payment.ID))

	assert.Equal(t, domain.TicketPurchased, repo.tickets["001"].Status)
}

func TestPaymentService_NotificationReplayAfterSettlement(t *testing.T) {
	svc, _, _, gateway, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	gateway.payment = mercadopago.Payment{
		ID:                "pix-1",
		Status:            domain.PaymentApproved,
		ExternalReference: result.HoldID.String(),
	}

	require.NoError(t, svc.HandleNotification(ctx, "pix-1"))

	err = svc.HandleNotification(ctx, "pix-1")
	assert.ErrorIs(t, err, ErrHoldNotActive)
}

func TestPaymentService_CancelOwnerOnly(t *testing.T) {
	svc, _, repo, _, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	stranger := newTestUser("Bruno")
	assert.ErrorIs(t, svc.Cancel(ctx, stranger, result.HoldID), ErrHoldForbidden)
	assert.Equal(t, domain.TicketReserved, repo.tickets["001"].Status)

	require.NoError(t, svc.Cancel(ctx, user, result.HoldID))
	assert.Equal(t, domain.TicketAvailable, repo.tickets["001"].Status)
}

func TestPaymentService_CancelByAdmin(t *testing.T) {
	svc, _, repo, _, user := paymentFixture(t, "001")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	admin := newTestUser("Admin")
	admin.IsAdmin = true

	require.NoError(t, svc.Cancel(ctx, admin, result.HoldID))
	assert.Equal(t, domain.TicketAvailable, repo.tickets["001"].Status)
}

func TestPaymentService_SweepReleasesExpiredHolds(t *testing.T) {
	svc, _, repo, _, user := paymentFixture(t, "001", "002")

	ctx := context.Background()
	result, err := svc.Checkout(ctx, user, domain.PaymentPix)
	require.NoError(t, err)

	// Not expired yet.
	svc.sweepExpired(ctx, time.Now())
	assert.Equal(t, domain.TicketReserved, repo.tickets["001"].Status)

	svc.sweepExpired(ctx, time.Now().Add(time.Hour))
	assert.Equal(t, domain.TicketAvailable, repo.tickets["001"].Status)
	assert.Equal(t, domain.TicketAvailable, repo.tickets["002"].Status)

	hold, err := repo.FindHoldByID(ctx, result.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldExpired, hold.Status)
}
