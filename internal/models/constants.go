package models

const (
	// ScheduleLayout is the wall-clock format used for class times in seed files.
	ScheduleLayout = "2006-01-02 15:04"

	// DefaultAttemptWindow is the booking throttle window in seconds.
	DefaultAttemptWindow = 60

	// ThrottleFallbackRetry is how long the failover throttle waits before retrying Redis, in seconds.
	ThrottleFallbackRetry = 60
)
