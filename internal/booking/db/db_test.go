package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	_, err = bunDB.NewCreateTable().Model((*models.Booking)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create bookings table: %v", err)
	}

	return &db.DB{Bun: bunDB}
}

func TestCreateBooking_AssignsIDAndTimestamp(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	b := &models.Booking{UserID: "u1", MovieTitle: "Dune", Amount: 250}
	require.NoError(t, store.CreateBooking(ctx, b))

	assert.NotEmpty(t, b.ID)
	assert.False(t, b.CreatedAt.IsZero())
	assert.Equal(t, models.BookingRecorded, b.Status)

	got, err := store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Dune", got.MovieTitle)
	assert.Equal(t, 250.0, got.Amount)
	assert.Empty(t, got.SessionID)
}

func TestCreateBooking_WithoutSessionAllowsDuplicates(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := &models.Booking{UserID: "u1", MovieTitle: "Dune", Amount: 250}
	second := &models.Booking{UserID: "u1", MovieTitle: "Dune", Amount: 250}
	require.NoError(t, store.CreateBooking(ctx, first))
	require.NoError(t, store.CreateBooking(ctx, second))

	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateBooking_DuplicateSession(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateBooking(ctx, &models.Booking{UserID: "u1", MovieTitle: "Dune", Amount: 250, SessionID: "cs_1"}))

	err := store.CreateBooking(ctx, &models.Booking{UserID: "u1", MovieTitle: "Dune", Amount: 250, SessionID: "cs_1"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSession)

	got, err := store.GetBookingBySession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got.SessionID)
}

func TestGetBooking_NotFound(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetBookingByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = store.GetBookingBySession(ctx, "cs_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListBookingsByUser_NewestFirst(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 18, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateBooking(ctx, &models.Booking{UserID: "u1", MovieTitle: "Old", Amount: 100, CreatedAt: base}))
	require.NoError(t, store.CreateBooking(ctx, &models.Booking{UserID: "u1", MovieTitle: "New", Amount: 120, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.CreateBooking(ctx, &models.Booking{UserID: "u2", MovieTitle: "Other", Amount: 90, CreatedAt: base}))

	list, err := store.ListBookingsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "New", list[0].MovieTitle)
	assert.Equal(t, "Old", list[1].MovieTitle)

	empty, err := store.ListBookingsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMarkBookingConfirmed(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	b := &models.Booking{UserID: "u1", MovieTitle: "Dune", Amount: 250, SessionID: "cs_7"}
	require.NoError(t, store.CreateBooking(ctx, b))
	require.NoError(t, store.MarkBookingConfirmed(ctx, b.ID))

	got, err := store.GetBookingBySession(ctx, "cs_7")
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)
	assert.Equal(t, "u1", got.UserID)

	assert.ErrorIs(t, store.MarkBookingConfirmed(ctx, "missing"), apperrors.ErrNotFound)
}
