package domain

import (
	"context"
	"time"

	"fitstudio/internal/models"
)

// BookingStore holds the class catalog and the bookings made against it.
type BookingStore interface {
	ListClasses(ctx context.Context) ([]models.FitnessClass, error)
	GetClass(ctx context.Context, id int64) (*models.FitnessClass, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) (*models.FitnessClass, error)
	GetBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
}

type AttemptLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	ListClasses(ctx context.Context) ([]models.FitnessClass, error)
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
	GetBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
}
