package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/ajaxctl/pkg/logging"
	"github.com/Sternrassler/ajaxctl/pkg/record"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// PageCap is the largest page the AJAX API serves.
const PageCap = 250

// Prometheus metrics for collections.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagination_pages_fetched_total",
		Help: "Total resource pages fetched",
	}, []string{"resource"})

	recordsCollectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagination_records_collected_total",
		Help: "Total records returned by collections",
	}, []string{"resource"})

	collectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagination_collect_duration_seconds",
		Help:    "Duration of complete collections in seconds",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"resource"})
)

// Cursor addresses one page of a resource.
type Cursor struct {
	Page  int `validate:"gte=1"`
	Limit int `validate:"gte=1,lte=250"`
}

// Request describes a collection: up to Limit records starting at record
// Offset, each projected onto Fields (all fields when empty).
type Request struct {
	Resource string `validate:"required"`
	Offset   int    `validate:"gte=0"`
	Limit    int    `validate:"gte=0"`
	Fields   []string
}

// Page is one page of a resource plus the resource's total record count.
type Page struct {
	Records []record.Record
	Total   int
}

// PageFetcher fetches single pages. Records are returned in the server's
// order (creation time ascending).
type PageFetcher interface {
	FetchPage(ctx context.Context, resource string, cursor Cursor) (Page, error)
}

// ProgressFunc is called with the number of records added after every page.
type ProgressFunc func(added int)

// Config holds collector configuration.
type Config struct {
	// PageCap is the largest page requested. It must match the server's cap
	// for offsets to line up with page boundaries.
	PageCap int

	// Sink receives per-page progress messages tagged "vv".
	Sink logging.Sink
}

// DefaultConfig returns the configuration for the AJAX API.
func DefaultConfig() Config {
	return Config{
		PageCap: PageCap,
		Sink:    logging.Discard,
	}
}

// Collector gathers records across pages. A Collector issues one request at
// a time.
type Collector struct {
	fetcher  PageFetcher
	config   Config
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewCollector creates a new collector.
func NewCollector(fetcher PageFetcher, config Config) *Collector {
	if config.PageCap <= 0 || config.PageCap > PageCap {
		config.PageCap = PageCap
	}
	if config.Sink == nil {
		config.Sink = logging.Discard
	}

	return &Collector{
		fetcher:  fetcher,
		config:   config,
		validate: validator.New(),
		logger:   logging.NewLogger("pagination"),
	}
}

// StartPage maps a record offset to the page holding it and the number of
// records to skip on that page.
func StartPage(offset, pageCap int) (page, pageOffset int) {
	return offset/pageCap + 1, offset % pageCap
}

// Count returns the total number of records of a resource.
func (c *Collector) Count(ctx context.Context, resource string) (int, error) {
	page, err := c.fetcher.FetchPage(ctx, resource, Cursor{Page: 1, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", resource, err)
	}
	return page.Total, nil
}

// Collect returns up to req.Limit records of req.Resource starting at record
// req.Offset, in server order.
//
// The limit is clamped to the records available after the offset, so the
// progress func reports exactly the returned count. Any failed page aborts
// the collection.
func (c *Collector) Collect(ctx context.Context, req Request, progress ProgressFunc) ([]record.Record, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid collection request: %w", err)
	}

	total, err := c.Count(ctx, req.Resource)
	if err != nil {
		return nil, err
	}

	return c.CollectWithTotal(ctx, req, total, progress)
}

// CollectWithTotal is Collect for a caller that already ran Count: total is
// used for the limit clamp and no count probe is sent.
func (c *Collector) CollectWithTotal(ctx context.Context, req Request, total int, progress ProgressFunc) ([]record.Record, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid collection request: %w", err)
	}
	if progress == nil {
		progress = func(int) {}
	}

	start := time.Now()

	limit := req.Limit
	if available := total - req.Offset; limit > available {
		limit = max(available, 0)
	}

	c.logger.Info().
		Str("resource", req.Resource).
		Int("total", total).
		Int("offset", req.Offset).
		Int("limit", limit).
		Msg("Starting collection")

	records := make([]record.Record, 0, limit)
	if limit == 0 {
		return records, nil
	}

	startPage, pageOffset := StartPage(req.Offset, c.config.PageCap)

	for page := startPage; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cursor := Cursor{Page: page, Limit: c.config.PageCap}
		if page == 1 {
			// Later pages keep the full size so their boundaries stay put.
			cursor.Limit = min(pageOffset+limit, c.config.PageCap)
		}

		c.config.Sink(fmt.Sprintf("Fetching %s page %d ...", req.Resource, page), "vv")

		result, err := c.fetcher.FetchPage(ctx, req.Resource, cursor)
		if err != nil {
			c.logger.Error().
				Err(err).
				Str("resource", req.Resource).
				Int("page", page).
				Msg("Page fetch failed")
			return nil, fmt.Errorf("fetch %s page %d: %w", req.Resource, page, err)
		}
		pagesFetchedTotal.WithLabelValues(req.Resource).Inc()

		batch := result.Records
		if page == startPage {
			batch = batch[min(pageOffset, len(batch)):]
		}
		if need := limit - len(records); len(batch) > need {
			batch = batch[:need]
		}

		for _, r := range batch {
			records = append(records, r.Project(req.Fields))
		}
		progress(len(batch))

		c.logger.Debug().
			Str("resource", req.Resource).
			Int("page", page).
			Int("added", len(batch)).
			Int("collected", len(records)).
			Msg("Page collected")

		if len(batch) == 0 || len(records) >= limit || len(result.Records) < cursor.Limit {
			break
		}
	}

	recordsCollectedTotal.WithLabelValues(req.Resource).Add(float64(len(records)))
	collectDuration.WithLabelValues(req.Resource).Observe(time.Since(start).Seconds())

	c.logger.Info().
		Str("resource", req.Resource).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return records, nil
}
