package models

import "time"

// Booking is a confirmed seat in a fitness class. It is never updated after creation.
type Booking struct {
	ID          int64     `json:"id"`
	ClassID     int64     `json:"class_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	CreatedAt   time.Time `json:"-"`
}

// BookingRequest is the body of POST /book. ClassID is a pointer so a missing
// field can be told apart from class 0.
type BookingRequest struct {
	ClassID     *int64 `json:"class_id" validate:"required"`
	ClientName  string `json:"client_name" validate:"required,max=200"`
	ClientEmail string `json:"client_email" validate:"required,email,max=254"`
}
