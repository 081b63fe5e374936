package repository

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fitstudio/internal/domain"
	"fitstudio/internal/models"
)

// classSlot keeps the immutable class fields next to a lock-free seat counter.
type classSlot struct {
	class     models.FitnessClass
	available atomic.Int64
}

func (s *classSlot) snapshot() models.FitnessClass {
	c := s.class
	c.AvailableSlots = int(s.available.Load())
	return c
}

// reserve takes one seat with compare-and-swap so two bookings for the same
// class can never both take the last seat.
func (s *classSlot) reserve() (int64, bool) {
	for {
		cur := s.available.Load()
		if cur <= 0 {
			return 0, false
		}
		if s.available.CompareAndSwap(cur, cur-1) {
			return cur - 1, true
		}
	}
}

// MemoryStore is the process-wide class catalog and booking table.
type MemoryStore struct {
	classes []*classSlot
	byID    map[int64]*classSlot

	mu       sync.RWMutex
	bookings []models.Booking
	lastID   int64

	now func() time.Time
}

func NewMemoryStore(classes []models.FitnessClass) *MemoryStore {
	s := &MemoryStore{
		classes:  make([]*classSlot, 0, len(classes)),
		byID:     make(map[int64]*classSlot, len(classes)),
		bookings: make([]models.Booking, 0),
		now:      time.Now,
	}
	for _, c := range classes {
		slot := &classSlot{class: c}
		slot.available.Store(int64(c.AvailableSlots))
		s.classes = append(s.classes, slot)
		s.byID[c.ID] = slot
	}
	return s
}

func (s *MemoryStore) ListClasses(ctx context.Context) ([]models.FitnessClass, error) {
	out := make([]models.FitnessClass, 0, len(s.classes))
	for _, slot := range s.classes {
		out = append(out, slot.snapshot())
	}
	return out, nil
}

func (s *MemoryStore) GetClass(ctx context.Context, id int64) (*models.FitnessClass, error) {
	slot, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrClassNotFound
	}
	c := slot.snapshot()
	return &c, nil
}

// CreateBookingWithLock reserves a seat and stores the booking. On success the
// booking gets its id and creation time, and the class snapshot after the
// decrement is returned.
func (s *MemoryStore) CreateBookingWithLock(ctx context.Context, booking *models.Booking) (*models.FitnessClass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slot, ok := s.byID[booking.ClassID]
	if !ok {
		return nil, domain.ErrClassNotFound
	}

	left, ok := slot.reserve()
	if !ok {
		return nil, domain.ErrNoSlotsAvailable
	}

	s.mu.Lock()
	s.lastID++
	booking.ID = s.lastID
	booking.CreatedAt = s.now()
	s.bookings = append(s.bookings, *booking)
	s.mu.Unlock()

	c := slot.class
	c.AvailableSlots = int(left)
	return &c, nil
}

func (s *MemoryStore) GetBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	email = strings.TrimSpace(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Booking, 0)
	for _, b := range s.bookings {
		if strings.EqualFold(b.ClientEmail, email) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Booking, len(s.bookings))
	copy(out, s.bookings)
	return out, nil
}
