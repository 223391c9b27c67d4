package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"

	"github.com/stripe/stripe-go/v82"
)

// Metadata keys attached to every hosted session so the completion webhook can
// rebuild the booking without trusting the client.
const (
	MetaUserID     = "user_id"
	MetaMovieTitle = "movie_title"
	MetaAmount     = "amount"
)

type Gateway interface {
	CreateSession(ctx context.Context, params payment.SessionParams) (*payment.Session, error)
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}

type SessionCache interface {
	SavePending(ctx context.Context, pending models.PendingCheckout) error
	GetPending(ctx context.Context, sessionID string) (*models.PendingCheckout, error)
	DeletePending(ctx context.Context, sessionID string) error
}

// BookingMetrics counts booking writes by source and outcome.
type BookingMetrics interface {
	CountBooking(source, outcome string)
}

// BookingConfirmer records a booking once the gateway reports the payment.
type BookingConfirmer interface {
	ConfirmBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
}

type Settings struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.SuccessURL(),
		CancelURL:  cfg.CancelURL(),
		Timeout:    cfg.Stripe.Timeout,
	}
}

const cacheTimeout = 2 * time.Second

type CheckoutService struct {
	gateway  Gateway
	cache    SessionCache
	bookings BookingConfirmer
	metrics  BookingMetrics
	settings Settings
	logger   *logger.Logger
}

type Option func(*CheckoutService)

func WithMetrics(m BookingMetrics) Option {
	return func(s *CheckoutService) {
		s.metrics = m
	}
}

// NewCheckoutService wires the orchestrator. cache and bookings may be nil; the
// session then cannot be confirmed server-side and only the client flow remains.
func NewCheckoutService(gateway Gateway, cache SessionCache, bookings BookingConfirmer, settings Settings, log *logger.Logger, opts ...Option) *CheckoutService {
	s := &CheckoutService{
		gateway:  gateway,
		cache:    cache,
		bookings: bookings,
		settings: settings,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cacheContext bounds a Redis call independently of the request deadline.
func cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cacheTimeout)
}

// CreateCheckoutSession prices a single ticket and opens a hosted checkout
// session for it. The gateway call is bounded by Settings.Timeout and is never
// retried here.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if req.Amount == nil {
		return nil, apperrors.Validation("Amount is required", "amount")
	}
	minor, err := ToMinorUnits(*req.Amount)
	if err != nil {
		verr := apperrors.Validation("Amount must be a positive number", "amount")
		verr.Err = err
		return nil, verr
	}

	title := strings.TrimSpace(req.MovieTitle)
	if title == "" {
		title = models.DefaultMovieTitle
	}
	userID := strings.TrimSpace(req.UserID)

	s.logger.Info("CHECKOUT", fmt.Sprintf("Creating payment for: %s (%s %.2f, %d minor units)", title, strings.ToUpper(s.settings.Currency), *req.Amount, minor))

	params := payment.SessionParams{
		LineItems:  []payment.LineItem{{Name: title, UnitAmount: minor, Quantity: 1}},
		Currency:   s.settings.Currency,
		SuccessURL: s.settings.SuccessURL,
		CancelURL:  s.settings.CancelURL,
		Metadata: map[string]string{
			MetaMovieTitle: title,
			MetaAmount:     strconv.FormatInt(minor, 10),
		},
	}
	if userID != "" {
		params.ClientReferenceID = userID
		params.Metadata[MetaUserID] = userID
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	sess, err := s.gateway.CreateSession(callCtx, params)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			s.logger.Error("CHECKOUT", fmt.Sprintf("Checkout session timed out after %s", s.settings.Timeout))
			return nil, apperrors.Gateway("Payment provider timed out", err)
		}
		s.logger.Error("CHECKOUT", fmt.Sprintf("Stripe error: %v", err))
		return nil, apperrors.Gateway("Failed to create checkout session", err)
	}
	if sess == nil || sess.URL == "" {
		return nil, apperrors.Gateway("Failed to create checkout session", errors.New("gateway returned no redirect URL"))
	}

	s.logger.LogCheckout("CREATE", sess.ID, fmt.Sprintf("redirecting to hosted checkout, success URL %s", s.settings.SuccessURL))

	if s.cache != nil {
		pending := models.PendingCheckout{
			SessionID:  sess.ID,
			UserID:     userID,
			MovieTitle: title,
			Amount:     FromMinorUnits(minor),
			MinorUnits: minor,
			Currency:   s.settings.Currency,
			CreatedAt:  time.Now().UTC(),
		}
		cacheCtx, cancelCache := cacheContext(ctx)
		err := s.cache.SavePending(cacheCtx, pending)
		cancelCache()
		if err != nil {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to cache pending checkout %s: %v", sess.ID, err))
		}
	}

	return &models.CheckoutResponse{URL: sess.URL, SessionID: sess.ID}, nil
}
