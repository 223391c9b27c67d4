package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"

	"github.com/stripe/stripe-go/v82"
)

const MsgSessionMismatch = "Checkout session does not match this booking"

type SessionLookup interface {
	GetSession(ctx context.Context, id string) (*payment.Session, error)
}

// SessionVerifier checks a client-supplied session id against the gateway
// before a booking may claim it: the session must be paid, owned by the same
// user and charged the same amount.
type SessionVerifier struct {
	gateway SessionLookup
	timeout time.Duration
	logger  *logger.Logger
}

func NewSessionVerifier(gateway SessionLookup, timeout time.Duration, log *logger.Logger) *SessionVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SessionVerifier{gateway: gateway, timeout: timeout, logger: log}
}

func (v *SessionVerifier) VerifySession(ctx context.Context, req models.BookingRequest) error {
	sessionID := strings.TrimSpace(req.SessionID)

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	sess, err := v.gateway.GetSession(callCtx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return v.reject(sessionID, "unknown session", err)
		}
		v.logger.Error("CHECKOUT", fmt.Sprintf("Could not verify checkout session %s: %v", sessionID, err))
		return apperrors.Gateway("Failed to verify checkout session", err)
	}

	if sess.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) {
		return v.reject(sessionID, fmt.Sprintf("payment status %q", sess.PaymentStatus), nil)
	}

	owner := strings.TrimSpace(sess.Metadata[MetaUserID])
	if owner == "" {
		owner = strings.TrimSpace(sess.ClientReferenceID)
	}
	if owner == "" || owner != strings.TrimSpace(req.UserID) {
		return v.reject(sessionID, fmt.Sprintf("owned by %q, claimed by %q", owner, req.UserID), nil)
	}

	if req.Amount == nil {
		return v.reject(sessionID, "no amount", nil)
	}
	minor, err := ToMinorUnits(*req.Amount)
	if err != nil || minor != sess.AmountTotal {
		return v.reject(sessionID, fmt.Sprintf("charged %d minor units, booking claims %.2f", sess.AmountTotal, *req.Amount), nil)
	}
	return nil
}

func (v *SessionVerifier) reject(sessionID, reason string, cause error) error {
	v.logger.LogSecurity("SESSION_MISMATCH", fmt.Sprintf("Booking rejected for checkout session %s: %s", sessionID, reason))
	if cause == nil {
		cause = apperrors.ErrSessionMismatch
	} else {
		cause = fmt.Errorf("%w: %v", apperrors.ErrSessionMismatch, cause)
	}
	return apperrors.Conflict(MsgSessionMismatch, cause)
}
