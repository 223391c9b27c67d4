package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-booking/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrInvalidSessionParams   = errors.New("invalid checkout session parameters")
	ErrWebhookNotConfigured   = errors.New("stripe webhook secret is not configured")
	ErrSessionNotFound        = errors.New("checkout session not found")
)

type LineItem struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

type SessionParams struct {
	LineItems         []LineItem
	Currency          string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
	IdempotencyKey    string
}

// Session is the part of a hosted checkout session the service cares about.
type Session struct {
	ID                string
	URL               string
	AmountTotal       int64
	Currency          string
	PaymentStatus     string
	ClientReferenceID string
	Metadata          map[string]string
}

type Option func(*StripeGateway)

// WithBackendURL points the client at a different API host. Tests use it with
// an httptest server.
func WithBackendURL(url string) Option {
	return func(g *StripeGateway) {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(url),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		g.backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
}

func WithWebhookSecret(secret string) Option {
	return func(g *StripeGateway) {
		g.webhookSecret = secret
	}
}

// StripeGateway creates hosted checkout sessions through Stripe. The API key is
// bound to this client instance; the package-level stripe.Key is never touched.
type StripeGateway struct {
	client        *client.API
	backends      *stripe.Backends
	webhookSecret string
	log           *logger.Logger
}

func NewStripeGateway(secretKey string, log *logger.Logger, opts ...Option) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		log.Error("STRIPE", "Stripe secret key is empty")
		return nil, ErrStripeClientInitFailed
	}

	g := &StripeGateway{log: log}
	for _, opt := range opts {
		opt(g)
	}

	g.client = client.New(secretKey, g.backends)
	if g.client == nil {
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return g, nil
}

// CreateSession opens a hosted checkout session in payment mode and returns its
// redirect URL. The context bounds the API call.
func (g *StripeGateway) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
	}
	params.Context = ctx

	for _, item := range p.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(p.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	g.log.Info("STRIPE", fmt.Sprintf("Checkout session created: %s", sess.ID))
	return fromStripeSession(sess), nil
}

// GetSession retrieves a checkout session so callers can check its payment
// state and owner. Unknown ids yield ErrSessionNotFound.
func (g *StripeGateway) GetSession(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidSessionParams)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.client.CheckoutSessions.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		g.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve checkout session %s: %v", id, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return fromStripeSession(sess), nil
}

// ParseWebhook verifies the Stripe-Signature header against the configured
// endpoint secret and decodes the event.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	if g.webhookSecret == "" {
		return stripe.Event{}, ErrWebhookNotConfigured
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, opts)
	if err != nil {
		g.log.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Stripe signature verification failed: %v", err))
		return stripe.Event{}, err
	}
	return event, nil
}

func validateParams(p SessionParams) error {
	if len(p.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidSessionParams)
	}
	for _, item := range p.LineItems {
		if item.UnitAmount <= 0 || item.Quantity <= 0 {
			return fmt.Errorf("%w: line item %q needs a positive amount and quantity", ErrInvalidSessionParams, item.Name)
		}
	}
	if p.Currency == "" || p.SuccessURL == "" || p.CancelURL == "" {
		return fmt.Errorf("%w: currency and redirect URLs are required", ErrInvalidSessionParams)
	}
	return nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *Session {
	return &Session{
		ID:                sess.ID,
		URL:               sess.URL,
		AmountTotal:       sess.AmountTotal,
		Currency:          string(sess.Currency),
		PaymentStatus:     string(sess.PaymentStatus),
		ClientReferenceID: sess.ClientReferenceID,
		Metadata:          sess.Metadata,
	}
}
