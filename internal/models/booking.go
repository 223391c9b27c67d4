package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	// BookingRecorded is a booking submitted by the client after the checkout redirect.
	BookingRecorded BookingStatus = "recorded"
	// BookingConfirmed is a booking written from a verified gateway webhook.
	BookingConfirmed BookingStatus = "confirmed"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID         string        `bun:"id,pk" json:"id"`
	UserID     string        `bun:"user_id,notnull" json:"userId"`
	MovieTitle string        `bun:"movie_title,notnull" json:"movieTitle"`
	Amount     float64       `bun:"amount,notnull" json:"amount"`
	SessionID  string        `bun:"session_id,nullzero,unique" json:"sessionId,omitempty"`
	Status     BookingStatus `bun:"status,notnull" json:"status"`
	CreatedAt  time.Time     `bun:"created_at,notnull" json:"createdAt"`
}

// BookingRequest is the body of POST /api/bookings. Amount is a pointer so a
// missing value can be told apart from an explicit zero.
type BookingRequest struct {
	UserID     string   `json:"userId"`
	MovieTitle string   `json:"movieTitle"`
	Amount     *float64 `json:"amount"`
	SessionID  string   `json:"sessionId,omitempty"`
}

type BookingResponse struct {
	Message string   `json:"message"`
	Booking *Booking `json:"booking,omitempty"`
}
