package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fitstudio/internal/events"
	"fitstudio/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeadLetterKey is the Redis list receiving events that exhausted their retries.
const DeadLetterKey = "fitstudio:events:deadletter"

// ErrQueueFull is returned by Enqueue when the buffer has no room left.
var ErrQueueFull = errors.New("event queue is full")

// Sink receives events off the request path.
type Sink interface {
	Deliver(ctx context.Context, event *events.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event *events.Event) error

func (f SinkFunc) Deliver(ctx context.Context, event *events.Event) error {
	return f(ctx, event)
}

type queuedEvent struct {
	event    events.Event
	attempts int
}

// deadLetter is what lands in DeadLetterKey.
type deadLetter struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error"`
}

// EventWorker delivers bus events to a sink with exponential backoff.
type EventWorker struct {
	sink          Sink
	redis         *redis.Client
	retryPolicy   repository.RetryPolicy
	queue         chan queuedEvent
	deadLetterKey string
	logger        *zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

// NewEventWorker builds a worker with sane defaults. redisClient may be nil, in
// which case dead letters are only logged.
func NewEventWorker(sink Sink, redisClient *redis.Client, retry repository.RetryPolicy, logger *zerolog.Logger) *EventWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 500 * time.Millisecond
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &EventWorker{
		sink:          sink,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan queuedEvent, 256),
		deadLetterKey: DeadLetterKey,
		logger:        logger,
	}
}

// Enqueue copies the event into the worker queue without blocking. It has the
// events.EventHandler signature so it can be subscribed to the bus directly.
func (w *EventWorker) Enqueue(event *events.Event) error {
	if event == nil {
		return errors.New("event is required")
	}
	return w.push(queuedEvent{event: *event})
}

func (w *EventWorker) push(item queuedEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("enqueue %s: worker stopped", item.event.Type)
	}

	select {
	case w.queue <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery loop until ctx is done.
func (w *EventWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("event worker started")
	defer w.logger.Info().Msg("event worker stopped")

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return
		case item := <-w.queue:
			w.process(ctx, item)
		}
	}
}

func (w *EventWorker) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	if left := len(w.queue); left > 0 {
		w.logger.Warn().Int("pending", left).Msg("event worker stopped with undelivered events")
	}
}

func (w *EventWorker) process(ctx context.Context, item queuedEvent) {
	err := w.sink.Deliver(ctx, &item.event)
	if err == nil {
		return
	}
	w.retryOrFail(ctx, item, err)
}

func (w *EventWorker) retryOrFail(ctx context.Context, item queuedEvent, cause error) {
	item.attempts++
	if item.attempts >= w.retryPolicy.MaxRetries {
		w.pushDeadLetter(ctx, item, cause)
		return
	}

	delay := w.retryPolicy.NextDelay(item.attempts)
	w.logger.Warn().Err(cause).
		Int64("event_id", item.event.ID).
		Int("attempt", item.attempts).
		Dur("retry_in", delay).
		Msg("event delivery failed")

	time.AfterFunc(delay, func() {
		if err := w.push(item); err != nil {
			w.pushDeadLetter(context.Background(), item, fmt.Errorf("requeue: %w", err))
		}
	})
}

func (w *EventWorker) pushDeadLetter(ctx context.Context, item queuedEvent, cause error) {
	w.logger.Error().Err(cause).
		Int64("event_id", item.event.ID).
		Str("event_type", item.event.Type).
		Int("attempts", item.attempts).
		Msg("event dropped to dead letter")

	if w.redis == nil {
		return
	}

	data, err := json.Marshal(deadLetter{
		ID:        item.event.ID,
		Type:      item.event.Type,
		Payload:   json.RawMessage(item.event.Payload),
		CreatedAt: item.event.CreatedAt,
		Attempts:  item.attempts,
		Error:     cause.Error(),
	})
	if err != nil {
		w.logger.Error().Err(err).Int64("event_id", item.event.ID).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("event_id", item.event.ID).Msg("dead letter push")
	}
}
