// Package session provides the authenticated gateway to the application's
// AJAX API: it signs in through the regular sign-in form, keeps the cookie
// session, and issues JSON requests under <base>/ajax/.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/Sternrassler/ajaxctl/pkg/logging"
	"github.com/Sternrassler/ajaxctl/pkg/ratelimit"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for AJAX requests. Endpoints carry record ids, so the
// labels stop at the method.
var (
	ajaxRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ajax_requests_total",
		Help: "Total AJAX requests by method and status",
	}, []string{"method", "status"})

	ajaxRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ajax_request_duration_seconds",
		Help:    "AJAX request duration in seconds by method",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	ajaxErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ajax_errors_total",
		Help: "Total AJAX request failures by class",
	}, []string{"class"})
)

const (
	acceptHeader     = "application/json, text/javascript"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Fetcher issues one authenticated AJAX call. An empty body means no body.
type Fetcher interface {
	Fetch(ctx context.Context, method, endpoint, body string) (*Response, error)
}

// Config holds the session configuration.
type Config struct {
	// BaseURL is the application origin, e.g. "https://go.tradegecko.com".
	BaseURL string `validate:"required,url"`

	// AjaxPath prefixes every endpoint passed to Fetch.
	AjaxPath string `validate:"required,startswith=/"`

	// SignInPath is the page holding the sign-in form.
	SignInPath string `validate:"required,startswith=/"`

	// Selectors locating the sign-in form inputs.
	UsernameSelector string `validate:"required"`
	PasswordSelector string `validate:"required"`
	SubmitSelector   string

	UserAgent string        `validate:"required"`
	Timeout   time.Duration `validate:"gt=0"`

	// CloudflareBypass wraps the transport with browser-like TLS settings.
	CloudflareBypass bool

	RateLimit ratelimit.Config
}

// DefaultConfig returns the configuration for TradeGecko.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://go.tradegecko.com",
		AjaxPath:         "/ajax",
		SignInPath:       "/account/sign_in",
		UsernameSelector: "#user_email",
		PasswordSelector: "#user_password",
		SubmitSelector:   "#login",
		UserAgent:        defaultUserAgent,
		Timeout:          30 * time.Second,
		CloudflareBypass: true,
		RateLimit:        ratelimit.DefaultConfig(),
	}
}

// Client is a signed-in (or signing-in) browser-like session.
// It holds one cookie session and is meant to be used sequentially.
type Client struct {
	http      *resty.Client
	baseURL   *url.URL
	config    Config
	tracker   *ratelimit.Tracker
	csrfToken string
	logger    zerolog.Logger
}

// New creates a new session client. Call SignIn before fetching.
func New(cfg Config) (*Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	logger := logging.NewLogger("session")

	client := resty.New()
	client.SetBaseURL(baseURL.String())
	client.SetCookieJar(jar)
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	client.SetTimeout(cfg.Timeout)
	client.SetAllowGetMethodPayload(true)

	return &Client{
		http:    client,
		baseURL: baseURL,
		config:  cfg,
		tracker: ratelimit.NewTracker(cfg.RateLimit, logger.With().Str("component", "ratelimit").Logger()),
		logger:  logger,
	}, nil
}

// Fetch performs an authenticated AJAX call against <base><AjaxPath>/<endpoint>.
//
// A non-empty body must be valid JSON, otherwise a *MalformedBodyError is
// returned before anything is sent. Network failures and unreadable success
// bodies are returned as *TransportError. A non-2xx answer is not an error:
// the returned Response reports it through Failed and Err.
func (c *Client) Fetch(ctx context.Context, method, endpoint, body string) (*Response, error) {
	method = strings.ToUpper(method)

	if body != "" {
		if err := validateBody(body); err != nil {
			ajaxErrorsTotal.WithLabelValues(string(ErrorClassMalformedBody)).Inc()
			return nil, err
		}
	}

	if err := c.tracker.Wait(ctx); err != nil {
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", acceptHeader).
		SetHeader("X-Requested-With", "XMLHttpRequest")
	if body != "" {
		req.SetBody(body)
	}
	if c.csrfToken != "" && method != "GET" && method != "HEAD" {
		req.SetHeader("X-CSRF-Token", c.csrfToken)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Msg("Executing AJAX request")

	start := time.Now()
	res, err := req.Execute(method, c.ajaxPath(endpoint))
	ajaxRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("AJAX request failed")
		ajaxErrorsTotal.WithLabelValues(string(classifyError(0, err))).Inc()
		ajaxRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}

	if err := c.tracker.UpdateFromHeaders(res.Header()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	ajaxRequestsTotal.WithLabelValues(method, strconv.Itoa(res.StatusCode())).Inc()

	out := &Response{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: res.StatusCode(),
		Status:     res.Status(),
		Header:     res.Header(),
		Body:       res.Body(),
	}

	if out.Failed() {
		errClass := classifyError(out.StatusCode, nil)
		ajaxErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status_code", out.StatusCode).
			Str("error_class", string(errClass)).
			Msg("AJAX request returned failure status")
		return out, nil
	}

	payload := bytes.TrimSpace(out.Body)
	switch {
	case len(payload) == 0:
		out.Body = json.RawMessage("null")
	case !json.Valid(payload):
		ajaxErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: ErrNonJSONResponse}
	default:
		out.Body = payload
	}

	c.logger.Trace().
		Str("method", method).
		Str("endpoint", endpoint).
		RawJSON("payload", out.Body).
		Msg("AJAX response")

	return out, nil
}

// RateLimitState returns the last rate limit window seen, or nil.
func (c *Client) RateLimitState() *ratelimit.State {
	return c.tracker.State()
}

// ajaxPath joins the AJAX prefix and an endpoint, which may carry a query.
func (c *Client) ajaxPath(endpoint string) string {
	return strings.TrimRight(c.config.AjaxPath, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// validateBody checks that a request body is JSON.
func validateBody(body string) error {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return &MalformedBodyError{Body: body, Err: err}
	}
	return nil
}
