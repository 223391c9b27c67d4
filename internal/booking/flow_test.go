package booking_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking"
	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/checkout"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// fakeStripe serves checkout sessions from memory and turns every webhook
// payload into a checkout.session.completed event for the named session.
type fakeStripe struct {
	sessions map[string]*payment.Session
}

func (f *fakeStripe) CreateSession(ctx context.Context, params payment.SessionParams) (*payment.Session, error) {
	return nil, payment.ErrInvalidSessionParams
}

func (f *fakeStripe) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	return sess, nil
}

func (f *fakeStripe) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	sess, ok := f.sessions[string(payload)]
	if !ok {
		return stripe.Event{}, payment.ErrSessionNotFound
	}
	raw, err := json.Marshal(map[string]any{
		"id":                  sess.ID,
		"payment_status":      sess.PaymentStatus,
		"amount_total":        sess.AmountTotal,
		"currency":            sess.Currency,
		"client_reference_id": sess.ClientReferenceID,
		"metadata":            sess.Metadata,
	})
	if err != nil {
		return stripe.Event{}, err
	}
	return stripe.Event{
		ID:   "evt_" + sess.ID,
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}, nil
}

type bookingFlow struct {
	store    *booking_db.DB
	bookings *booking.BookingService
	checkout *checkout.CheckoutService
}

func setupFlow(t *testing.T, sessions ...*payment.Session) *bookingFlow {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	_, err = bunDB.NewCreateTable().Model((*models.Booking)(nil)).Exec(context.Background())
	require.NoError(t, err)

	gateway := &fakeStripe{sessions: map[string]*payment.Session{}}
	for _, s := range sessions {
		gateway.sessions[s.ID] = s
	}

	log := logger.Discard()
	store := &booking_db.DB{Bun: bunDB}
	verifier := checkout.NewSessionVerifier(gateway, time.Second, log)
	bookings := booking.NewBookingService(store, verifier, nil, time.Second, log)
	settings := checkout.Settings{Currency: "inr", SuccessURL: "https://tickets.example.com/success", CancelURL: "https://tickets.example.com/cancel", Timeout: time.Second}

	return &bookingFlow{
		store:    store,
		bookings: bookings,
		checkout: checkout.NewCheckoutService(gateway, nil, bookings, settings, log),
	}
}

func victimSession() *payment.Session {
	return &payment.Session{
		ID:                "cs_victim",
		AmountTotal:       25000,
		Currency:          "inr",
		PaymentStatus:     "paid",
		ClientReferenceID: "victim",
		Metadata: map[string]string{
			checkout.MetaUserID:     "victim",
			checkout.MetaMovieTitle: "Dune",
			checkout.MetaAmount:     "25000",
		},
	}
}

func TestFlow_ForeignSessionCannotBeClaimedByClient(t *testing.T) {
	flow := setupFlow(t, victimSession())
	ctx := context.Background()

	_, err := flow.bookings.RecordBooking(ctx, models.BookingRequest{
		UserID:     "mallory",
		MovieTitle: "Dune",
		Amount:     amount(1),
		SessionID:  "cs_victim",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = flow.store.GetBookingBySession(ctx, "cs_victim")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, flow.checkout.HandleWebhook(ctx, []byte("cs_victim"), "sig"))

	got, err := flow.store.GetBookingBySession(ctx, "cs_victim")
	require.NoError(t, err)
	assert.Equal(t, "victim", got.UserID)
	assert.Equal(t, 250.0, got.Amount)
	assert.Equal(t, models.BookingConfirmed, got.Status)

	mine, err := flow.bookings.ListUserBookings(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestFlow_MadeUpSessionIsRejected(t *testing.T) {
	flow := setupFlow(t)

	_, err := flow.bookings.RecordBooking(context.Background(), models.BookingRequest{
		UserID:     "mallory",
		MovieTitle: "Dune",
		Amount:     amount(1),
		SessionID:  "cs_made_up",
	})

	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestFlow_ClientRecordThenWebhookConfirm(t *testing.T) {
	flow := setupFlow(t, victimSession())
	ctx := context.Background()

	recorded, err := flow.bookings.RecordBooking(ctx, models.BookingRequest{
		UserID:     "victim",
		MovieTitle: "Dune",
		Amount:     amount(250),
		SessionID:  "cs_victim",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingRecorded, recorded.Status)

	require.NoError(t, flow.checkout.HandleWebhook(ctx, []byte("cs_victim"), "sig"))
	// Stripe delivers at least once
	require.NoError(t, flow.checkout.HandleWebhook(ctx, []byte("cs_victim"), "sig"))

	got, err := flow.store.GetBookingBySession(ctx, "cs_victim")
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, got.ID)
	assert.Equal(t, "victim", got.UserID)
	assert.Equal(t, models.BookingConfirmed, got.Status)

	all, err := flow.bookings.ListUserBookings(ctx, "victim")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// the client retrying after the webhook sees the confirmed row
	again, err := flow.bookings.RecordBooking(ctx, models.BookingRequest{
		UserID:     "victim",
		MovieTitle: "Dune",
		Amount:     amount(250),
		SessionID:  "cs_victim",
	})
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, again.ID)
	assert.Equal(t, models.BookingConfirmed, again.Status)
}

func TestFlow_WebhookFirstThenClient(t *testing.T) {
	flow := setupFlow(t, victimSession())
	ctx := context.Background()

	require.NoError(t, flow.checkout.HandleWebhook(ctx, []byte("cs_victim"), "sig"))

	b, err := flow.bookings.RecordBooking(ctx, models.BookingRequest{
		UserID:     "victim",
		MovieTitle: "Dune",
		Amount:     amount(250),
		SessionID:  "cs_victim",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	assert.Equal(t, "victim", b.UserID)
}
