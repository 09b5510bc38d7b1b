package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/ajaxctl/pkg/record"
	"github.com/Sternrassler/ajaxctl/pkg/session"
)

// Fixed filters applied to every page request.
const (
	OrderCreatedAsc = "created_at asc"
	StatusActive    = "active"
)

var (
	// ErrUnexpectedPayload is returned when a page response does not carry
	// a list under the resource's name.
	ErrUnexpectedPayload = errors.New("unexpected resource payload")

	// ErrMissingTotal is returned when a page response has no meta.total.
	ErrMissingTotal = errors.New("resource payload has no meta.total")
)

// ResourceClient fetches resource pages through an authenticated session.
type ResourceClient struct {
	fetcher session.Fetcher
}

// NewResourceClient creates a page fetcher over a session.
func NewResourceClient(fetcher session.Fetcher) *ResourceClient {
	return &ResourceClient{fetcher: fetcher}
}

// Endpoint builds the page endpoint for a resource, e.g.
// "variants?limit=250&order=created_at+asc&page=2&status%5B%5D=active".
func Endpoint(resource string, cursor Cursor) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(cursor.Limit))
	q.Set("page", strconv.Itoa(cursor.Page))
	q.Set("status[]", StatusActive)
	q.Set("order", OrderCreatedAsc)
	return resource + "?" + q.Encode()
}

// FetchPage implements PageFetcher. A failed response is returned as its
// *session.RemoteFailureError.
func (rc *ResourceClient) FetchPage(ctx context.Context, resource string, cursor Cursor) (Page, error) {
	resp, err := rc.fetcher.Fetch(ctx, "GET", Endpoint(resource, cursor), "")
	if err != nil {
		return Page{}, err
	}
	if err := resp.Err(); err != nil {
		return Page{}, err
	}
	return decodePage(resource, resp.Body)
}

// decodePage reads {"<resource>": [...], "meta": {"total": N}}.
func decodePage(resource string, body []byte) (Page, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}

	list, ok := envelope[resource]
	if !ok {
		return Page{}, fmt.Errorf("%w: no %q key", ErrUnexpectedPayload, resource)
	}

	var records []record.Record
	if err := json.Unmarshal(list, &records); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}

	var meta struct {
		Total *int `json:"total"`
	}
	if raw, ok := envelope["meta"]; ok {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return Page{}, fmt.Errorf("%w: %v", ErrMissingTotal, err)
		}
	}
	if meta.Total == nil {
		return Page{}, ErrMissingTotal
	}

	return Page{Records: records, Total: *meta.Total}, nil
}
