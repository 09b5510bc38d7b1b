// Package ratelimit paces requests against the AJAX API. It follows the
// X-Rate-Limit-Limit, X-Rate-Limit-Remaining and X-Rate-Limit-Reset response
// headers and can additionally hold a steady request rate.
//
// Pacing only delays the next request; nothing is ever re-sent.
package ratelimit

import (
	"time"
)

// Response headers carrying the server's rate limit window.
const (
	HeaderLimit     = "X-Rate-Limit-Limit"
	HeaderRemaining = "X-Rate-Limit-Remaining"
	HeaderReset     = "X-Rate-Limit-Reset"
)

// resetEpochCutoff separates relative reset values (seconds until reset)
// from absolute ones (unix timestamps).
const resetEpochCutoff = 1_000_000_000

// State represents the most recently observed rate limit window.
type State struct {
	// Limit is the request budget of the window, 0 when the server did not say.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window refills.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was read from a response.
	LastUpdate time.Time `json:"last_update"`
}

// NeedsPause returns true when fewer than threshold requests remain and the
// window has not reset yet.
func (s *State) NeedsPause(threshold int) bool {
	return s.Remaining < threshold && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
