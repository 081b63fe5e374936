package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fitstudio/internal/config"
	"fitstudio/internal/domain"
	"fitstudio/internal/export"
	"fitstudio/internal/models"
	"fitstudio/internal/validation"

	"github.com/rs/zerolog"
)

const (
	welcomeMessage = "Welcome to the Fitness Studio Booking API"
	bookedMessage  = "Booking successful"

	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HTTPServer exposes the booking API over plain JSON.
type HTTPServer struct {
	cfg     config.APIConfig
	service domain.BookingService
	server  *http.Server
	limiter *rateLimiter
	log     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, service domain.BookingService, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:     cfg,
		service: service,
		limiter: newRateLimiter(cfg.RateLimit),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux.HandleFunc("/", srv.handleRoot)
	mux.HandleFunc("/classes", srv.handleClasses)
	mux.HandleFunc("/book", srv.handleBook)
	mux.HandleFunc("/bookings", srv.handleBookings)
	mux.HandleFunc("/bookings/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/readyz", srv.handleReady)

	handler := requestIDMiddleware(srv.log,
		accessLogMiddleware(
			metricsMiddleware(
				recoverMiddleware(
					srv.limiter.Wrap(mux)))))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PurgeIdleClients drops rate limit buckets of clients idle for longer than idle.
func (s *HTTPServer) PurgeIdleClients(idle time.Duration) int {
	return s.limiter.Purge(idle)
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (s *HTTPServer) handleClasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	classes, err := s.service.ListClasses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

type bookingResponse struct {
	Message   string `json:"message"`
	BookingID int64  `json:"booking_id"`
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	var req models.BookingRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []validation.FieldError{{Field: "body", Tag: "json", Message: bodyErrorMessage(err)}},
		})
		return
	}

	booking, err := s.service.CreateBooking(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingResponse{Message: bookedMessage, BookingID: booking.ID})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	bookings, err := s.service.GetBookingsByEmail(r.Context(), r.URL.Query().Get("client_email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	// bookings first: seats are taken before a booking is appended, so the
	// later class snapshot never shows more free seats than the rows imply
	ctx := r.Context()
	var (
		bookings []models.Booking
		err      error
	)
	if email := r.URL.Query().Get("client_email"); email != "" {
		bookings, err = s.service.GetBookingsByEmail(ctx, email)
	} else {
		bookings, err = s.service.ListBookings(ctx)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	classes, err := s.service.ListClasses(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, classes, bookings); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	if _, err := s.service.ListClasses(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps service and store errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verr.Result.Errors})
	case errors.Is(err, domain.ErrClassNotFound):
		writeError(w, http.StatusNotFound, "Fitness class not found")
	case errors.Is(err, domain.ErrNoSlotsAvailable):
		writeError(w, http.StatusBadRequest, "No available slots for this class")
	case errors.Is(err, domain.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "Too many booking attempts")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func bodyErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type.String())
	case errors.As(err, &maxErr):
		return "request body too large"
	case errors.Is(err, io.EOF):
		return "request body is required"
	default:
		return "request body is not valid JSON"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"detail": message})
}
