package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking"
	"ms-booking/internal/checkout"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"

	"github.com/go-chi/chi/v5"
)

const (
	HealthMessage = "✅ Backend is running successfully!"

	maxBodyBytes    = 1 << 16
	maxWebhookBytes = 1 << 16
)

type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type BookingService interface {
	RecordBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error)
}

type TicketRenderer interface {
	GenerateTicketQR(booking models.Booking) ([]byte, error)
}

type Handler struct {
	Checkout CheckoutService
	Bookings BookingService
	Tickets  TicketRenderer
	Metrics  *metrics.ServerMetrics
	Logger   *logger.Logger
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HealthMessage))
}

// CreatePayment handles POST /payment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreatePayment: invalid request body: %v", err))
		h.countCheckout("invalid")
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.Checkout.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			appErr = apperrors.Gateway("Failed to create checkout session", err)
		}
		if appErr.Kind == apperrors.KindValidation {
			h.countCheckout("invalid")
		} else {
			h.countCheckout("failed")
		}
		writeJSON(w, appErr.StatusCode, models.ErrorResponse{Error: appErr.Public})
		return
	}

	h.countCheckout("created")
	writeJSON(w, http.StatusOK, resp)
}

// CreateBooking handles POST /api/bookings. Error bodies never carry a booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateBooking: invalid request body: %v", err))
		h.countBooking("invalid")
		writeJSON(w, http.StatusBadRequest, models.BookingResponse{Message: booking.MsgMissingDetails})
		return
	}

	b, err := h.Bookings.RecordBooking(r.Context(), req)
	if err != nil {
		status := apperrors.StatusCode(err)
		msg := booking.MsgSaveFailed
		switch {
		case apperrors.Is(err, apperrors.KindValidation):
			msg = booking.MsgMissingDetails
			h.countBooking("invalid")
		case apperrors.Is(err, apperrors.KindConflict):
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				msg = appErr.Public
			}
			h.Logger.LogSecurity("SESSION_MISMATCH", fmt.Sprintf("CreateBooking: %s claimed session %s: %v", req.UserID, req.SessionID, err))
			h.countBooking("conflict")
		default:
			h.countBooking("failed")
		}
		writeJSON(w, status, models.BookingResponse{Message: msg})
		return
	}

	h.countBooking("stored")
	writeJSON(w, http.StatusCreated, models.BookingResponse{Message: "Booking stored", Booking: b})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetBookingQR renders the booking as a PNG ticket.
func (h *Handler) GetBookingQR(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBooking(w, r)
	if !ok {
		return
	}

	png, err := h.Tickets.GenerateTicketQR(*b)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBookingQR: failed to render ticket for %s: %v", b.ID, err))
		writeJSON(w, http.StatusInternalServerError, models.BookingResponse{Message: "Failed to generate ticket"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	list, err := h.Bookings.ListUserBookings(r.Context(), userID)
	if err != nil {
		writeJSON(w, apperrors.StatusCode(err), models.BookingResponse{Message: publicMessage(err, booking.MsgLoadFailed)})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// StripeWebhook verifies and applies a gateway callback.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("StripeWebhook: failed to read body: %v", err))
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}

	err = h.Checkout.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("StripeWebhook: failed to process webhook: %v", err))

		var webhookErr *checkout.WebhookError
		if errors.As(err, &webhookErr) {
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) loadBooking(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	id := chi.URLParam(r, "bookingId")

	b, err := h.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, models.BookingResponse{Message: booking.MsgNotFound})
			return nil, false
		}
		writeJSON(w, apperrors.StatusCode(err), models.BookingResponse{Message: publicMessage(err, booking.MsgLoadFailed)})
		return nil, false
	}
	return b, true
}

func (h *Handler) countCheckout(outcome string) {
	if h.Metrics != nil {
		h.Metrics.Checkouts.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) countBooking(outcome string) {
	if h.Metrics != nil {
		h.Metrics.CountBooking("client", outcome)
	}
}

func publicMessage(err error, fallback string) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Public != "" {
		return appErr.Public
	}
	return fallback
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
