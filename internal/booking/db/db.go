package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BOOKINGS ----------------

// CreateBooking assigns the id and creation time, then inserts the row.
func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	if booking.Status == "" {
		booking.Status = models.BookingRecorded
	}

	_, err := d.Bun.NewInsert().
		Model(booking).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateSession
		}
		return err
	}
	return nil
}

// GetBookingByID fetches one booking by its id.
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// GetBookingBySession fetches the booking recorded for a checkout session.
func (d *DB) GetBookingBySession(ctx context.Context, sessionID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// ListBookingsByUser returns a user's bookings, newest first.
func (d *DB) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0)
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkBookingConfirmed promotes a booking to the confirmed status.
func (d *DB) MarkBookingConfirmed(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.BookingConfirmed).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite reports constraint failures only through the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
