package metrics

import (
	"strconv"
	"sync"
	"time"

	"fitstudio/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fitstudio"

// Booking results.
const (
	ResultSuccess   = "success"
	ResultNotFound  = "not_found"
	ResultFull      = "full"
	ResultInvalid   = "invalid"
	ResultThrottled = "throttled"
	ResultError     = "error"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint, method and status.",
		},
		[]string{"endpoint", "method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by result.",
		},
		[]string{"result"},
	)

	availableSlots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "class_available_slots",
			Help:      "Seats left per class.",
		},
		[]string{"class_id", "class_name"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bookings, availableSlots)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint, method string, status int, dur time.Duration) {
	httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(dur.Seconds())
}

// IncBooking counts a booking attempt outcome.
func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

// SetAvailableSlots publishes the current seat count of a class.
func SetAvailableSlots(class models.FitnessClass) {
	availableSlots.WithLabelValues(strconv.FormatInt(class.ID, 10), class.Name).Set(float64(class.AvailableSlots))
}
