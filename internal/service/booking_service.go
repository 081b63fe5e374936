package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitstudio/internal/domain"
	"fitstudio/internal/events"
	"fitstudio/internal/metrics"
	"fitstudio/internal/models"
	"fitstudio/internal/validation"

	"github.com/rs/zerolog"
)

// AttemptLimits bounds how many booking attempts one client email may make per window.
// A zero Limit disables the check.
type AttemptLimits struct {
	Limit  int
	Window time.Duration
}

type BookingService struct {
	store    domain.BookingStore
	limiter  domain.AttemptLimiter
	eventBus domain.EventPublisher
	limits   AttemptLimits
	logger   *zerolog.Logger
}

func NewBookingService(store domain.BookingStore, limiter domain.AttemptLimiter, eventBus domain.EventPublisher, limits AttemptLimits, logger *zerolog.Logger) *BookingService {
	if limits.Window <= 0 {
		limits.Window = models.DefaultAttemptWindow * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		store:    store,
		limiter:  limiter,
		eventBus: eventBus,
		limits:   limits,
		logger:   logger,
	}
}

func (s *BookingService) ListClasses(ctx context.Context) ([]models.FitnessClass, error) {
	return s.store.ListClasses(ctx)
}

// CreateBooking reserves one seat in the requested class for the client.
func (s *BookingService) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if res := validation.Booking(req); !res.Valid {
		metrics.IncBooking(metrics.ResultInvalid)
		return nil, res.Err()
	}
	req = validation.NormalizeBooking(req)

	if err := s.checkAttempts(ctx, req.ClientEmail); err != nil {
		metrics.IncBooking(metrics.ResultThrottled)
		return nil, err
	}

	booking := &models.Booking{
		ClassID:     *req.ClassID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
	}

	class, err := s.store.CreateBookingWithLock(ctx, booking)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrClassNotFound):
			metrics.IncBooking(metrics.ResultNotFound)
		case errors.Is(err, domain.ErrNoSlotsAvailable):
			metrics.IncBooking(metrics.ResultFull)
		default:
			metrics.IncBooking(metrics.ResultError)
		}
		return nil, err
	}

	metrics.IncBooking(metrics.ResultSuccess)
	metrics.SetAvailableSlots(*class)
	s.publishEvent(*booking, *class)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("class_id", class.ID).
		Str("class", class.Name).
		Int("available_slots", class.AvailableSlots).
		Msg("booking created")

	return booking, nil
}

func (s *BookingService) GetBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	if res := validation.Email(email); !res.Valid {
		return nil, res.Err()
	}
	return s.store.GetBookingsByEmail(ctx, strings.TrimSpace(email))
}

func (s *BookingService) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return s.store.ListBookings(ctx)
}

// checkAttempts fails open: a broken throttle store must not block bookings.
func (s *BookingService) checkAttempts(ctx context.Context, email string) error {
	if s.limiter == nil || s.limits.Limit <= 0 {
		return nil
	}

	key := strings.ToLower(email)
	allowed, err := s.limiter.CheckRateLimit(ctx, key, s.limits.Limit, s.limits.Window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("attempt throttle unavailable")
		return nil
	}
	if !allowed {
		return fmt.Errorf("%w: retry in %s", domain.ErrTooManyAttempts, s.limits.Window)
	}
	return nil
}

func (s *BookingService) publishEvent(booking models.Booking, class models.FitnessClass) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		ClassID:        class.ID,
		ClassName:      class.Name,
		ClientName:     booking.ClientName,
		ClientEmail:    booking.ClientEmail,
		AvailableSlots: class.AvailableSlots,
		CreatedAt:      booking.CreatedAt,
	}

	if err := s.eventBus.PublishJSON(events.EventBookingCreated, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", events.EventBookingCreated).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
