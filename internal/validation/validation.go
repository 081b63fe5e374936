// Package validation checks client input before any domain entity is built.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"fitstudio/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names so messages match the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Result is the outcome of a validation run.
type Result struct {
	Valid  bool
	Reason string
	Errors []FieldError
}

// Err returns nil for a valid result and an *Error otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Result: r}
}

// Error carries a failed Result through error returns.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	return "validation failed: " + e.Result.Reason
}

// NormalizeBooking trims the free-text fields of a booking request.
func NormalizeBooking(req models.BookingRequest) models.BookingRequest {
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.TrimSpace(req.ClientEmail)
	return req
}

// Booking validates a booking request after normalization.
func Booking(req models.BookingRequest) Result {
	return fromError(validate.Struct(NormalizeBooking(req)), "")
}

// Email validates a client email used as a lookup key.
func Email(email string) Result {
	return fromError(validate.Var(strings.TrimSpace(email), "required,email,max=254"), "client_email")
}

func fromError(err error, field string) Result {
	if err == nil {
		return Result{Valid: true}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Result{Reason: err.Error()}
	}

	out := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if name == "" {
			name = field
		}
		out = append(out, FieldError{
			Field:   name,
			Tag:     fe.Tag(),
			Message: message(name, fe.Tag(), fe.Param()),
		})
	}

	reasons := make([]string, 0, len(out))
	for _, fe := range out {
		reasons = append(reasons, fe.Message)
	}

	return Result{Reason: strings.Join(reasons, "; "), Errors: out}
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	default:
		return field + " is invalid"
	}
}
