package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"

	"github.com/stripe/stripe-go/v82"
)

// WebhookError represents an error that occurred during webhook processing.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// HandleWebhook verifies a gateway callback and, for a paid checkout session,
// records the confirmed booking keyed by the session id. Replays of the same
// event resolve to the booking already stored.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrWebhookNotConfigured) {
			s.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
			return &WebhookError{
				Category:      "configuration",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Webhook processing error",
				InternalError: err.Error(),
				OriginalErr:   err,
			}
		}
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	s.logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event %s (%s)", event.ID, event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, werr := decodeSession(event)
		if werr != nil {
			return werr
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			s.logger.Info("WEBHOOK", fmt.Sprintf("Session %s completed with payment status %q, waiting for payment", sess.ID, sess.PaymentStatus))
			return nil
		}
		return s.confirmSession(ctx, sess)

	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		sess, werr := decodeSession(event)
		if werr != nil {
			return werr
		}
		s.logger.LogCheckout("ABANDON", sess.ID, string(event.Type))
		s.forgetPending(ctx, sess.ID)
		return nil

	default:
		s.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		return nil
	}
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, *WebhookError) {
	var sess stripe.CheckoutSession
	if event.Data == nil {
		return nil, &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: "event has no data object",
		}
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("failed to unmarshal checkout session: %v", err),
			OriginalErr:   err,
		}
	}
	if sess.ID == "" {
		return nil, &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: "checkout session has no id",
		}
	}
	return &sess, nil
}

func (s *CheckoutService) confirmSession(ctx context.Context, sess *stripe.CheckoutSession) error {
	if s.bookings == nil {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("No booking recorder configured, session %s not recorded", sess.ID))
		return nil
	}

	req := s.bookingFromSession(ctx, sess)
	if req.UserID == "" {
		// Stripe would keep retrying an event we can never attribute to a user.
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Session %s has no user reference, booking left to the client flow", sess.ID))
		return nil
	}

	booking, err := s.bookings.ConfirmBooking(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		outcome := "failed"
		switch {
		case apperrors.Is(err, apperrors.KindValidation):
			status, outcome = http.StatusBadRequest, "invalid"
		case apperrors.Is(err, apperrors.KindConflict):
			status, outcome = http.StatusConflict, "conflict"
		}
		s.countBooking(outcome)
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to record booking for session %s: %v", sess.ID, err))
		return &WebhookError{
			Category:      "processing",
			StatusCode:    status,
			PublicError:   "Failed to record booking",
			InternalError: fmt.Sprintf("failed to record booking for session %s: %v", sess.ID, err),
			OriginalErr:   err,
		}
	}

	s.countBooking("confirmed")
	s.logger.LogCheckout("CONFIRM", sess.ID, fmt.Sprintf("booking %s confirmed", booking.ID))
	s.forgetPending(ctx, sess.ID)
	return nil
}

// bookingFromSession prefers what the gateway echoes back and falls back to
// the pending record cached when the session was created.
func (s *CheckoutService) bookingFromSession(ctx context.Context, sess *stripe.CheckoutSession) models.BookingRequest {
	var pending *models.PendingCheckout
	if s.cache != nil {
		cacheCtx, cancel := cacheContext(ctx)
		p, err := s.cache.GetPending(cacheCtx, sess.ID)
		cancel()
		switch {
		case err == nil:
			pending = p
		case !errors.Is(err, apperrors.ErrNotFound):
			s.logger.Warn("WEBHOOK", fmt.Sprintf("Pending checkout lookup failed for %s: %v", sess.ID, err))
		}
	}

	req := models.BookingRequest{SessionID: sess.ID}

	req.UserID = strings.TrimSpace(sess.Metadata[MetaUserID])
	if req.UserID == "" {
		req.UserID = strings.TrimSpace(sess.ClientReferenceID)
	}
	if req.UserID == "" && pending != nil {
		req.UserID = pending.UserID
	}

	req.MovieTitle = strings.TrimSpace(sess.Metadata[MetaMovieTitle])
	if req.MovieTitle == "" && pending != nil {
		req.MovieTitle = pending.MovieTitle
	}
	if req.MovieTitle == "" {
		req.MovieTitle = models.DefaultMovieTitle
	}

	minor := sess.AmountTotal
	if raw := sess.Metadata[MetaAmount]; minor <= 0 && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.logger.Warn("WEBHOOK", fmt.Sprintf("Session %s carries unreadable amount metadata %q: %v", sess.ID, raw, err))
		} else {
			minor = parsed
		}
	}
	if minor <= 0 && pending != nil {
		minor = pending.MinorUnits
	}
	if minor > 0 {
		amount := FromMinorUnits(minor)
		req.Amount = &amount
	}

	return req
}

func (s *CheckoutService) forgetPending(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	cacheCtx, cancel := cacheContext(ctx)
	defer cancel()
	if err := s.cache.DeletePending(cacheCtx, sessionID); err != nil {
		s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to drop pending checkout %s: %v", sessionID, err))
	}
}

func (s *CheckoutService) countBooking(outcome string) {
	if s.metrics != nil {
		s.metrics.CountBooking("webhook", outcome)
	}
}
