package models

import (
	"time"
)

// StreakResult summarizes the consecutive-day activity derived from one
// set of event timestamps. LastActive is the zero time when no activity
// has ever been recorded.
type StreakResult struct {
	Current     int       `json:"current"`
	Longest     int       `json:"longest"`
	LastActive  time.Time `json:"last_active"`
	ActiveToday bool      `json:"active_today"`
}
