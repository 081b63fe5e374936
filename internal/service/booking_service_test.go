package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitstudio/internal/config"
	"fitstudio/internal/domain"
	"fitstudio/internal/events"
	"fitstudio/internal/models"
	"fitstudio/internal/repository"
	"fitstudio/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListClasses(ctx context.Context) ([]models.FitnessClass, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FitnessClass), args.Error(1)
}
func (m *mockStore) GetClass(ctx context.Context, id int64) (*models.FitnessClass, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FitnessClass), args.Error(1)
}
func (m *mockStore) CreateBookingWithLock(ctx context.Context, b *models.Booking) (*models.FitnessClass, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FitnessClass), args.Error(1)
}
func (m *mockStore) GetBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func int64Ptr(v int64) *int64 { return &v }

func request(classID int64, name, email string) models.BookingRequest {
	return models.BookingRequest{ClassID: int64Ptr(classID), ClientName: name, ClientEmail: email}
}

func newSeededService(t *testing.T) (*BookingService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore(config.DefaultClasses())
	return NewBookingService(store, nil, nil, AttemptLimits{}, nil), store
}

func classByID(t *testing.T, svc *BookingService, id int64) models.FitnessClass {
	t.Helper()
	classes, err := svc.ListClasses(context.Background())
	require.NoError(t, err)
	for _, c := range classes {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("class %d not found", id)
	return models.FitnessClass{}
}

func TestListClassesSeeded(t *testing.T) {
	svc, _ := newSeededService(t)

	classes, err := svc.ListClasses(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 3)

	assert.Equal(t, "Yoga", classes[0].Name)
	assert.Equal(t, "Zumba", classes[1].Name)
	assert.Equal(t, "HIIT", classes[2].Name)
	for _, c := range classes {
		assert.Equal(t, c.TotalSlots, c.AvailableSlots)
	}
}

func TestCreateBookingDecrementsSlots(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, request(1, "Asha", "asha@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), booking.ID)
	assert.Equal(t, int64(1), booking.ClassID)
	assert.Equal(t, 9, classByID(t, svc, 1).AvailableSlots)

	next, err := svc.CreateBooking(ctx, request(2, "Ravi", "ravi@example.com"))
	require.NoError(t, err)
	assert.Greater(t, next.ID, booking.ID)
	assert.Equal(t, 14, classByID(t, svc, 2).AvailableSlots)
}

func TestCreateBookingUnknownClass(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, request(999, "Asha", "asha@example.com"))
	assert.ErrorIs(t, err, domain.ErrClassNotFound)

	bookings, err := svc.ListBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	for _, c := range []int64{1, 2, 3} {
		class := classByID(t, svc, c)
		assert.Equal(t, class.TotalSlots, class.AvailableSlots)
	}
}

func TestCreateBookingUntilFull(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 10; i++ {
		b, err := svc.CreateBooking(ctx, request(1, "Asha", "asha@example.com"))
		require.NoError(t, err)
		assert.Greater(t, b.ID, lastID)
		lastID = b.ID
	}

	_, err := svc.CreateBooking(ctx, request(1, "Asha", "asha@example.com"))
	assert.ErrorIs(t, err, domain.ErrNoSlotsAvailable)
	assert.Equal(t, 0, classByID(t, svc, 1).AvailableSlots)

	bookings, err := svc.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, bookings, 10)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, _ := newSeededService(t)

	tests := []struct {
		name  string
		req   models.BookingRequest
		field string
	}{
		{"missing class", models.BookingRequest{ClientName: "Asha", ClientEmail: "asha@example.com"}, "class_id"},
		{"blank name", request(1, "   ", "asha@example.com"), "client_name"},
		{"bad email", request(1, "Asha", "not-an-email"), "client_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), tt.req)
			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Result.Errors)
			assert.Equal(t, tt.field, verr.Result.Errors[0].Field)
		})
	}

	assert.Equal(t, 10, classByID(t, svc, 1).AvailableSlots)
}

func TestCreateBookingTrimsInput(t *testing.T) {
	svc, _ := newSeededService(t)

	b, err := svc.CreateBooking(context.Background(), request(3, "  Neha  ", " neha@example.com "))
	require.NoError(t, err)
	assert.Equal(t, "Neha", b.ClientName)
	assert.Equal(t, "neha@example.com", b.ClientEmail)
}

func TestGetBookingsByEmailCaseInsensitive(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, request(1, "Asha", "Asha@Example.com"))
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, request(2, "Other", "other@example.com"))
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, request(3, "Asha", "asha@example.com"))
	require.NoError(t, err)

	found, err := svc.GetBookingsByEmail(ctx, "ASHA@EXAMPLE.COM")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, int64(1), found[0].ClassID)
	assert.Equal(t, int64(3), found[1].ClassID)

	none, err := svc.GetBookingsByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetBookingsByEmailInvalid(t *testing.T) {
	svc, _ := newSeededService(t)

	_, err := svc.GetBookingsByEmail(context.Background(), "")
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "client_email", verr.Result.Errors[0].Field)
}

func TestCreateBookingThrottled(t *testing.T) {
	store := new(mockStore)
	limiter := new(mockLimiter)
	svc := NewBookingService(store, limiter, nil, AttemptLimits{Limit: 3, Window: time.Minute}, nil)

	limiter.On("CheckRateLimit", mock.Anything, "asha@example.com", 3, time.Minute).Return(false, nil)

	_, err := svc.CreateBooking(context.Background(), request(1, "Asha", "Asha@Example.com"))
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
	store.AssertNotCalled(t, "CreateBookingWithLock", mock.Anything, mock.Anything)
	limiter.AssertExpectations(t)
}

func TestCreateBookingThrottleFailsOpen(t *testing.T) {
	store := new(mockStore)
	limiter := new(mockLimiter)
	svc := NewBookingService(store, limiter, nil, AttemptLimits{Limit: 3, Window: time.Minute}, nil)

	limiter.On("CheckRateLimit", mock.Anything, "asha@example.com", 3, time.Minute).Return(false, errors.New("redis down"))
	store.On("CreateBookingWithLock", mock.Anything, mock.AnythingOfType("*models.Booking")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Booking).ID = 1
		}).
		Return(&models.FitnessClass{ID: 1, Name: "Yoga", TotalSlots: 10, AvailableSlots: 9}, nil)

	b, err := svc.CreateBooking(context.Background(), request(1, "Asha", "asha@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)
	store.AssertExpectations(t)
}

func TestCreateBookingDisabledThrottle(t *testing.T) {
	store := new(mockStore)
	limiter := new(mockLimiter)
	svc := NewBookingService(store, limiter, nil, AttemptLimits{}, nil)

	store.On("CreateBookingWithLock", mock.Anything, mock.Anything).
		Return(&models.FitnessClass{ID: 1, Name: "Yoga", TotalSlots: 10, AvailableSlots: 9}, nil)

	_, err := svc.CreateBooking(context.Background(), request(1, "Asha", "asha@example.com"))
	require.NoError(t, err)
	limiter.AssertNotCalled(t, "CheckRateLimit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingPublishesEvent(t *testing.T) {
	store := new(mockStore)
	publisher := new(mockPublisher)
	svc := NewBookingService(store, nil, publisher, AttemptLimits{}, nil)

	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	store.On("CreateBookingWithLock", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			b := args.Get(1).(*models.Booking)
			b.ID = 42
			b.CreatedAt = created
		}).
		Return(&models.FitnessClass{ID: 2, Name: "Zumba", TotalSlots: 15, AvailableSlots: 14}, nil)

	publisher.On("PublishJSON", events.EventBookingCreated, events.BookingEventPayload{
		BookingID:      42,
		ClassID:        2,
		ClassName:      "Zumba",
		ClientName:     "Ravi",
		ClientEmail:    "ravi@example.com",
		AvailableSlots: 14,
		CreatedAt:      created,
	}).Return(nil)

	_, err := svc.CreateBooking(context.Background(), request(2, "Ravi", "ravi@example.com"))
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestCreateBookingPublishErrorIgnored(t *testing.T) {
	store := new(mockStore)
	publisher := new(mockPublisher)
	svc := NewBookingService(store, nil, publisher, AttemptLimits{}, nil)

	store.On("CreateBookingWithLock", mock.Anything, mock.Anything).
		Return(&models.FitnessClass{ID: 2, Name: "Zumba", TotalSlots: 15, AvailableSlots: 14}, nil)
	publisher.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(errors.New("handler failed"))

	_, err := svc.CreateBooking(context.Background(), request(2, "Ravi", "ravi@example.com"))
	assert.NoError(t, err)
}

func TestCreateBookingStoreError(t *testing.T) {
	store := new(mockStore)
	svc := NewBookingService(store, nil, nil, AttemptLimits{}, nil)

	boom := errors.New("boom")
	store.On("CreateBookingWithLock", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := svc.CreateBooking(context.Background(), request(2, "Ravi", "ravi@example.com"))
	assert.ErrorIs(t, err, boom)
}

func TestCreateBookingWithEventBus(t *testing.T) {
	store := repository.NewMemoryStore(config.DefaultClasses())
	bus := events.NewEventBus()
	svc := NewBookingService(store, nil, bus, AttemptLimits{}, nil)

	var got events.BookingEventPayload
	bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		return e.Decode(&got)
	})

	b, err := svc.CreateBooking(context.Background(), request(3, "Neha", "neha@example.com"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.BookingID)
	assert.Equal(t, "HIIT", got.ClassName)
	assert.Equal(t, 11, got.AvailableSlots)
}

func TestCreateBookingWithMemoryThrottle(t *testing.T) {
	store := repository.NewMemoryStore(config.DefaultClasses())
	svc := NewBookingService(store, repository.NewMemoryThrottleRepository(), nil, AttemptLimits{Limit: 2, Window: time.Minute}, nil)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, request(1, "Asha", "asha@example.com"))
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, request(1, "Asha", "ASHA@example.com"))
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, request(1, "Asha", "asha@example.com"))
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	_, err = svc.CreateBooking(ctx, request(1, "Ravi", "ravi@example.com"))
	assert.NoError(t, err)
	assert.Equal(t, 7, classByID(t, svc, 1).AvailableSlots)
}
