package models

import "time"

const DefaultMovieTitle = "Movie Ticket"

// CheckoutRequest is the body of POST /payment.
type CheckoutRequest struct {
	Amount     *float64 `json:"amount"`
	MovieTitle string   `json:"movieTitle,omitempty"`
	UserID     string   `json:"userId,omitempty"`
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId,omitempty"`
}

// PendingCheckout is what we remember about a hosted session between its creation
// and the gateway's completion webhook.
type PendingCheckout struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id,omitempty"`
	MovieTitle string    `json:"movie_title"`
	Amount     float64   `json:"amount"`
	MinorUnits int64     `json:"minor_units"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
