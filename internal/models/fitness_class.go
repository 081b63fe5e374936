package models

import "time"

// IST is the fixed UTC+05:30 zone every class timestamp is expressed in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

type FitnessClass struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ScheduledAt    time.Time `json:"datetime_ist"`
	Instructor     string    `json:"instructor"`
	TotalSlots     int       `json:"total_slots"`
	AvailableSlots int       `json:"available_slots"`
}

// BookedSlots is the number of seats already taken.
func (c FitnessClass) BookedSlots() int {
	return c.TotalSlots - c.AvailableSlots
}

// ISTTime builds a wall-clock time in IST.
func ISTTime(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, IST)
}
