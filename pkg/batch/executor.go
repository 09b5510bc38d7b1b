// Package batch replays a list of records as templated AJAX requests.
//
// Each record in the selected window renders an endpoint (and optionally a
// body) from the job's templates and is sent as one request. A failing
// record is reported and skipped; it never stops the run.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/ajaxctl/pkg/logging"
	"github.com/Sternrassler/ajaxctl/pkg/record"
	"github.com/Sternrassler/ajaxctl/pkg/session"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Outcome results, used as metric labels.
const (
	ResultSucceeded     = "succeeded"
	ResultRemoteFailure = "remote_failure"
	ResultFailed        = "failed"
)

var (
	batchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_outcomes_total",
		Help: "Total batch records processed by result",
	}, []string{"result"})

	batchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_run_duration_seconds",
		Help:    "Duration of batch runs in seconds",
		Buckets: []float64{1, 10, 60, 300, 900, 3600},
	})
)

// Job describes a batch run over Records[Offset:Offset+Limit].
type Job struct {
	Records          []record.Record
	Method           string `validate:"required"`
	EndpointTemplate string `validate:"required"`
	// BodyTemplate is optional; empty sends no body.
	BodyTemplate string
	Offset       int
	Limit        int `validate:"gte=0"`
}

// Outcome is the result of one record's request.
type Outcome struct {
	Index    int
	Method   string
	Endpoint string
	Body     string

	// Response is set when the server answered, successfully or not.
	Response *session.Response

	// Err is set when no usable answer was obtained: the rendered body was
	// not JSON, the request did not complete or the success body was not JSON.
	Err error
}

// OK reports whether the request succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Response != nil && !o.Response.Failed()
}

// Result classifies the outcome.
func (o Outcome) Result() string {
	switch {
	case o.Err != nil:
		return ResultFailed
	case o.OK():
		return ResultSucceeded
	default:
		return ResultRemoteFailure
	}
}

// Summary counts the outcomes of a run.
type Summary struct {
	Processed      int
	Succeeded      int
	RemoteFailures int
	Failed         int
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o.Result() {
	case ResultSucceeded:
		s.Succeeded++
	case ResultRemoteFailure:
		s.RemoteFailures++
	default:
		s.Failed++
	}
}

// Config holds executor configuration.
type Config struct {
	// Sink receives one "Requesting: ..." message per record, tagged "v".
	Sink logging.Sink
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{Sink: logging.Discard}
}

// Executor runs batch jobs through one session, one request at a time.
type Executor struct {
	fetcher  session.Fetcher
	config   Config
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewExecutor creates a new executor.
func NewExecutor(fetcher session.Fetcher, config Config) *Executor {
	if config.Sink == nil {
		config.Sink = logging.Discard
	}
	return &Executor{
		fetcher:  fetcher,
		config:   config,
		validate: validator.New(),
		logger:   logging.NewLogger("batch"),
	}
}

// Window returns the index range [start, stop) selected by offset and limit
// over n records. The offset is clamped to [0, n].
func Window(offset, limit, n int) (start, stop int) {
	start = min(max(offset, 0), n)
	stop = start + min(max(limit, 0), n-start)
	return start, stop
}

// Run sends one request per record of the job's window, in ascending index
// order, and passes every outcome to handle before moving on.
//
// Per-record failures are reported through the outcome and never end the
// run. Run only returns an error for an invalid job or template, or when ctx
// is done between records.
func (e *Executor) Run(ctx context.Context, job Job, handle func(Outcome)) (Summary, error) {
	var summary Summary

	if err := e.validate.Struct(job); err != nil {
		return summary, fmt.Errorf("invalid batch job: %w", err)
	}
	endpointTmpl, err := Compile(job.EndpointTemplate)
	if err != nil {
		return summary, fmt.Errorf("endpoint template: %w", err)
	}
	var bodyTmpl *Template
	if job.BodyTemplate != "" {
		if bodyTmpl, err = Compile(job.BodyTemplate); err != nil {
			return summary, fmt.Errorf("body template: %w", err)
		}
	}
	if handle == nil {
		handle = func(Outcome) {}
	}

	start, stop := Window(job.Offset, job.Limit, len(job.Records))
	began := time.Now()

	e.logger.Info().
		Str("method", job.Method).
		Str("endpoint_template", job.EndpointTemplate).
		Int("start", start).
		Int("stop", stop).
		Msg("Starting batch run")

	for i := start; i < stop; i++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn().Int("index", i).Msg("Batch run cancelled")
			return summary, err
		}

		outcome := Outcome{
			Index:    i,
			Method:   job.Method,
			Endpoint: endpointTmpl.Execute(job.Records[i]),
		}
		if bodyTmpl != nil {
			outcome.Body = bodyTmpl.Execute(job.Records[i])
		}

		e.config.Sink(fmt.Sprintf("Requesting: %s %s", outcome.Method, outcome.Endpoint), "v")

		outcome.Response, outcome.Err = e.fetcher.Fetch(ctx, outcome.Method, outcome.Endpoint, outcome.Body)

		summary.add(outcome)
		batchOutcomesTotal.WithLabelValues(outcome.Result()).Inc()

		event := e.logger.Debug()
		if !outcome.OK() {
			event = e.logger.Warn().Err(outcome.Err)
			if outcome.Response != nil {
				event = event.Int("status_code", outcome.Response.StatusCode)
			}
		}
		event.
			Int("index", i).
			Str("method", outcome.Method).
			Str("endpoint", outcome.Endpoint).
			Str("result", outcome.Result()).
			Msg("Record processed")

		handle(outcome)
	}

	batchRunDuration.Observe(time.Since(began).Seconds())

	e.logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("remote_failures", summary.RemoteFailures).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(began)).
		Msg("Batch run complete")

	return summary, nil
}
