package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(EventBookingCreated, BookingEventPayload{
		BookingID:      7,
		ClassID:        1,
		ClassName:      "Yoga",
		ClientName:     "Asha",
		ClientEmail:    "asha@example.com",
		AvailableSlots: 9,
		CreatedAt:      created,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingCreated, received.Type)
	assert.Equal(t, int64(1), received.ID)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, "Yoga", decoded.ClassName)
	assert.Equal(t, 9, decoded.AvailableSlots)
	assert.True(t, created.Equal(decoded.CreatedAt))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })
	bus.Subscribe("other", func(_ *Event) error { t.Fatal("unexpected handler"); return nil })

	require.NoError(t, bus.PublishJSON("event", map[string]int{"n": 1}))
	require.NoError(t, bus.PublishJSON("event", map[string]int{"n": 2}))

	assert.Equal(t, 2, count1)
	assert.Equal(t, 2, count2)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	var ran bool

	bus.Subscribe("event", func(_ *Event) error { return boom })
	bus.Subscribe("event", func(_ *Event) error { ran = true; return nil })

	err := bus.PublishJSON("event", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "later handlers still run")
}

func TestEventBusSequence(t *testing.T) {
	bus := NewEventBus()
	var ids []int64
	bus.Subscribe("event", func(e *Event) error { ids = append(ids, e.ID); return nil })

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.PublishJSON("event", i))
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON("event", nil))
}

func TestNewJSONEventError(t *testing.T) {
	_, err := NewJSONEvent("event", make(chan int))
	assert.Error(t, err)
}

func TestDecodeError(t *testing.T) {
	e := &Event{Type: "event", Payload: []byte("{")}
	var v map[string]string
	assert.Error(t, e.Decode(&v))
}
