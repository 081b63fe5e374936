package domain

import "errors"

var (
	ErrClassNotFound    = errors.New("fitness class not found")
	ErrNoSlotsAvailable = errors.New("no available slots for this class")
	ErrTooManyAttempts  = errors.New("too many booking attempts")
)
