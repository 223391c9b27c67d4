package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/shopspring/decimal"
)

const (
	MsgMissingDetails = "Missing booking details"
	MsgSaveFailed     = "Failed to save booking"
	MsgNotFound       = "Booking not found"
	MsgLoadFailed     = "Failed to load bookings"
	MsgSessionTaken   = "Checkout session belongs to another booking"
)

const defaultStoreTimeout = 5 * time.Second

type Store interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetBookingBySession(ctx context.Context, sessionID string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	MarkBookingConfirmed(ctx context.Context, id string) error
}

// SessionVerifier checks that a client-supplied checkout session was paid by
// the same user for the same amount.
type SessionVerifier interface {
	VerifySession(ctx context.Context, req models.BookingRequest) error
}

type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event models.BookingEvent) error
}

type BookingService struct {
	store        Store
	verifier     SessionVerifier
	publisher    EventPublisher
	storeTimeout time.Duration
	logger       *logger.Logger
}

// NewBookingService builds the recorder. publisher may be nil when Kafka is
// disabled; without a verifier client-supplied session ids are trusted.
func NewBookingService(store Store, verifier SessionVerifier, publisher EventPublisher, storeTimeout time.Duration, log *logger.Logger) *BookingService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &BookingService{
		store:        store,
		verifier:     verifier,
		publisher:    publisher,
		storeTimeout: storeTimeout,
		logger:       log,
	}
}

// RecordBooking stores a booking submitted by the client after the checkout
// redirect. A session id is checked against the payment gateway before it is
// stored, and makes the call idempotent.
func (s *BookingService) RecordBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	return s.record(ctx, req, models.BookingRecorded)
}

// ConfirmBooking stores a booking reported paid by the gateway. The session id
// is mandatory here and doubles as the idempotency key.
func (s *BookingService) ConfirmBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, apperrors.Validation(MsgMissingDetails, "sessionId")
	}
	return s.record(ctx, req, models.BookingConfirmed)
}

func (s *BookingService) record(ctx context.Context, req models.BookingRequest, status models.BookingStatus) (*models.Booking, error) {
	booking, err := validate(req)
	if err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("Rejected booking request: %v", err))
		return nil, err
	}
	booking.Status = status

	if status == models.BookingRecorded && booking.SessionID != "" && s.verifier != nil {
		if err := s.verifier.VerifySession(ctx, req); err != nil {
			s.logger.Warn("BOOKING", fmt.Sprintf("Session %s failed verification for %s: %v", booking.SessionID, booking.UserID, err))
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if booking.SessionID != "" {
		existing, err := s.store.GetBookingBySession(ctx, booking.SessionID)
		switch {
		case err == nil:
			return s.replay(ctx, existing, booking)
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, s.persistenceError(ctx, err)
		}
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateSession) {
			// lost a race with a concurrent write for the same session
			existing, lookupErr := s.store.GetBookingBySession(ctx, booking.SessionID)
			if lookupErr == nil {
				return s.replay(ctx, existing, booking)
			}
			err = lookupErr
		}
		return nil, s.persistenceError(ctx, err)
	}

	s.logger.LogBooking("CREATE", booking.ID, fmt.Sprintf("%s booked %q for %.2f (%s)", booking.UserID, booking.MovieTitle, booking.Amount, booking.Status))
	s.publishCreated(ctx, *booking)
	return booking, nil
}

// replay answers a write for a session that is already stored. The stored row
// wins as long as it describes the same purchase; a gateway confirmation
// promotes a client-recorded row to confirmed.
func (s *BookingService) replay(ctx context.Context, existing, incoming *models.Booking) (*models.Booking, error) {
	if existing.UserID != incoming.UserID || !sameAmount(existing.Amount, incoming.Amount) {
		s.logger.LogSecurity("SESSION_MISMATCH", fmt.Sprintf("Session %s is held by booking %s for %s, rejected write for %s",
			incoming.SessionID, existing.ID, existing.UserID, incoming.UserID))
		return nil, apperrors.Conflict(MsgSessionTaken, apperrors.ErrSessionMismatch)
	}

	if incoming.Status == models.BookingConfirmed && existing.Status != models.BookingConfirmed {
		if err := s.store.MarkBookingConfirmed(ctx, existing.ID); err != nil {
			return nil, s.persistenceError(ctx, err)
		}
		existing.Status = models.BookingConfirmed
		s.logger.LogBooking("CONFIRM", existing.ID, fmt.Sprintf("session %s confirmed by the gateway", incoming.SessionID))
		return existing, nil
	}

	s.logger.LogBooking("REPLAY", existing.ID, fmt.Sprintf("session %s already recorded", incoming.SessionID))
	return existing, nil
}

func sameAmount(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}

func (s *BookingService) persistenceError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Error("BOOKING", fmt.Sprintf("Booking store timed out after %s", s.storeTimeout))
	} else {
		s.logger.Error("BOOKING", fmt.Sprintf("Error saving booking: %v", err))
	}
	return apperrors.Persistence(MsgSaveFailed, err)
}

func (s *BookingService) publishCreated(ctx context.Context, booking models.Booking) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBookingCreated(ctx, models.NewBookingCreatedEvent(booking)); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish booking.created for %s: %v", booking.ID, err))
	}
}

// GetBooking returns a single booking. Unknown ids yield apperrors.ErrNotFound.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	booking, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("BOOKING", fmt.Sprintf("Error loading booking %s: %v", id, err))
		return nil, apperrors.Persistence(MsgLoadFailed, err)
	}
	return booking, nil
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation("User id is required", "userId")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	bookings, err := s.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		s.logger.Error("BOOKING", fmt.Sprintf("Error listing bookings for %s: %v", userID, err))
		return nil, apperrors.Persistence(MsgLoadFailed, err)
	}
	return bookings, nil
}

func validate(req models.BookingRequest) (*models.Booking, error) {
	var missing []string

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		missing = append(missing, "userId")
	}
	title := strings.TrimSpace(req.MovieTitle)
	if title == "" {
		missing = append(missing, "movieTitle")
	}
	if req.Amount == nil || *req.Amount <= 0 || math.IsNaN(*req.Amount) || math.IsInf(*req.Amount, 0) {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation(MsgMissingDetails, missing...)
	}

	return &models.Booking{
		UserID:     userID,
		MovieTitle: title,
		Amount:     *req.Amount,
		SessionID:  strings.TrimSpace(req.SessionID),
	}, nil
}
