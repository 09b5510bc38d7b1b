package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/ajaxctl/internal/testutil"
	"github.com/Sternrassler/ajaxctl/pkg/session"
)

func newTestSession(t *testing.T) (*session.Client, *testutil.MockApp) {
	t.Helper()

	app := testutil.NewMockApp("ops@example.com", "secret")
	t.Cleanup(app.Close)

	cfg := session.DefaultConfig()
	cfg.BaseURL = app.URL()
	cfg.CloudflareBypass = false
	cfg.Timeout = 5 * time.Second

	c, err := session.New(cfg)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	if err := c.SignIn(context.Background(), "ops@example.com", "secret"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	return c, app
}

func TestEndpoint(t *testing.T) {
	got := Endpoint("variants", Cursor{Page: 2, Limit: 250})

	want := "variants?limit=250&order=created_at+asc&page=2&status%5B%5D=active"
	if got != want {
		t.Errorf("Endpoint() = %q, want %q", got, want)
	}
}

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantTotal int
		wantErr   error
	}{
		{
			name:      "page",
			body:      `{"variants":[{"id":1},{"id":2}],"meta":{"total":7}}`,
			wantCount: 2,
			wantTotal: 7,
		},
		{
			name:      "empty page",
			body:      `{"variants":[],"meta":{"total":0}}`,
			wantTotal: 0,
		},
		{
			name:    "wrong resource key",
			body:    `{"products":[],"meta":{"total":0}}`,
			wantErr: ErrUnexpectedPayload,
		},
		{
			name:    "list is not an array",
			body:    `{"variants":{"id":1},"meta":{"total":1}}`,
			wantErr: ErrUnexpectedPayload,
		},
		{
			name:    "missing meta",
			body:    `{"variants":[]}`,
			wantErr: ErrMissingTotal,
		},
		{
			name:    "missing total",
			body:    `{"variants":[],"meta":{}}`,
			wantErr: ErrMissingTotal,
		},
		{
			name:    "not an object",
			body:    `[]`,
			wantErr: ErrUnexpectedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := decodePage("variants", []byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("decodePage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodePage() error = %v", err)
			}
			if len(page.Records) != tt.wantCount {
				t.Errorf("len(Records) = %d, want %d", len(page.Records), tt.wantCount)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", page.Total, tt.wantTotal)
			}
		})
	}
}

func TestResourceClient_FetchPage(t *testing.T) {
	c, app := newTestSession(t)
	app.SetRecords("variants", []json.RawMessage{
		json.RawMessage(`{"sku":"A","id":1}`),
		json.RawMessage(`{"sku":"B","id":2}`),
		json.RawMessage(`{"sku":"C","id":3}`),
	})

	page, err := NewResourceClient(c).FetchPage(context.Background(), "variants", Cursor{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(page.Records) != 1 || page.Records[0].String() != `{"sku":"C","id":3}` {
		t.Errorf("Records = %v, want [{\"sku\":\"C\",\"id\":3}]", page.Records)
	}

	reqs := app.Requests()
	q, err := url.ParseQuery(reqs[len(reqs)-1].Query)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	checks := map[string]string{
		"limit":    "2",
		"page":     "2",
		"order":    OrderCreatedAsc,
		"status[]": StatusActive,
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("query %s = %q, want %q", k, got, want)
		}
	}
}

func TestResourceClient_RemoteFailure(t *testing.T) {
	c, app := newTestSession(t)
	app.SetResponse("GET", "variants", testutil.NewFailureResponse(http.StatusInternalServerError))

	_, err := NewResourceClient(c).FetchPage(context.Background(), "variants", Cursor{Page: 1, Limit: 1})

	var remote *session.RemoteFailureError
	if !errors.As(err, &remote) {
		t.Fatalf("FetchPage() error = %v, want *session.RemoteFailureError", err)
	}
	if remote.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", remote.StatusCode)
	}
}

func TestCollect_AgainstSession(t *testing.T) {
	c, app := newTestSession(t)
	app.SeedRecords("products", 530)

	collector := NewCollector(NewResourceClient(c), DefaultConfig())

	var progressed int
	records, err := collector.Collect(context.Background(), Request{
		Resource: "products",
		Offset:   260,
		Limit:    10000,
		Fields:   []string{"id"},
	}, func(n int) { progressed += n })
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(records) != 270 {
		t.Fatalf("len(records) = %d, want 270", len(records))
	}
	if progressed != 270 {
		t.Errorf("progress = %d, want 270", progressed)
	}
	if got := records[0].String(); got != `{"id":261}` {
		t.Errorf("first record = %s, want {\"id\":261}", got)
	}
	if got := records[269].String(); got != `{"id":530}` {
		t.Errorf("last record = %s, want {\"id\":530}", got)
	}

	// count probe, page 2, page 3
	if n := app.GetPageRequests(); n != 3 {
		t.Errorf("page requests = %d, want 3", n)
	}
}
