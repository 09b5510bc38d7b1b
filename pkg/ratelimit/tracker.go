package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	ajaxRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ajax_rate_limit_remaining",
		Help: "Requests remaining in the current AJAX API rate limit window",
	})

	ajaxRateLimitPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ajax_rate_limit_pauses_total",
		Help: "Total number of pauses taken because the rate limit window was nearly spent",
	})

	ajaxRateLimitPauseSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ajax_rate_limit_pause_seconds",
		Help:    "Duration of rate limit pauses in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Config holds tracker configuration.
type Config struct {
	// Threshold pauses requests when fewer than this many remain in the window.
	Threshold int

	// MaxPause caps a single pause.
	MaxPause time.Duration

	// RequestsPerSecond holds a steady rate; 0 disables it.
	RequestsPerSecond float64

	// Burst is the steady limiter's burst size (minimum 1).
	Burst int
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		Threshold: 2,
		MaxPause:  60 * time.Second,
		Burst:     1,
	}
}

// Tracker follows the server's rate limit headers and gates requests.
// A Tracker belongs to one session and is not safe for concurrent use.
type Tracker struct {
	config  Config
	state   *State
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.MaxPause <= 0 {
		cfg.MaxPause = DefaultConfig().MaxPause
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	t := &Tracker{
		config: cfg,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return t
}

// State returns the last observed window, or nil before any header was seen.
func (t *Tracker) State() *State {
	if t.state == nil {
		return nil
	}
	s := *t.state
	return &s
}

// UpdateFromHeaders records the window advertised by a response.
// Responses without rate limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(strings.TrimSpace(remainStr))
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	now := time.Now()
	state := &State{
		Remaining:  remain,
		ResetAt:    now,
		LastUpdate: now,
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		reset, err := strconv.ParseInt(strings.TrimSpace(resetStr), 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		if reset >= resetEpochCutoff {
			state.ResetAt = time.Unix(reset, 0)
		} else {
			state.ResetAt = now.Add(time.Duration(reset) * time.Second)
		}
	}

	t.state = state
	ajaxRateLimitRemaining.Set(float64(remain))

	t.logger.Debug().
		Int("remaining", state.Remaining).
		Int("limit", state.Limit).
		Time("reset_at", state.ResetAt).
		Msg("Rate limit state updated")

	return nil
}

// Wait blocks until the next request may be sent. It pauses until the window
// resets when the remaining budget is below the threshold, then applies the
// steady rate if one is configured.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.state != nil && t.state.NeedsPause(t.config.Threshold) {
		pause := t.state.TimeUntilReset()
		if pause > t.config.MaxPause {
			pause = t.config.MaxPause
		}

		t.logger.Warn().
			Int("remaining", t.state.Remaining).
			Dur("pause", pause).
			Msg("Rate limit nearly spent - pausing")

		ajaxRateLimitPausesTotal.Inc()
		ajaxRateLimitPauseSeconds.Observe(pause.Seconds())

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		// The window is assumed refilled until the next response says otherwise.
		t.state = nil
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	return nil
}
