package models

import "time"

const EventBookingCreated = "booking.created"

type BookingEvent struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Booking   Booking   `json:"booking"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBookingCreatedEvent(b Booking) BookingEvent {
	return BookingEvent{
		Type:      EventBookingCreated,
		BookingID: b.ID,
		UserID:    b.UserID,
		SessionID: b.SessionID,
		Booking:   b,
		Timestamp: time.Now().UTC(),
	}
}
