package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Sternrassler/ajaxctl/pkg/record"
	"github.com/google/go-cmp/cmp"
)

// fakeFetcher serves total records with ids 1..total using the server's
// page arithmetic: page p holds records [(p-1)*limit, p*limit).
type fakeFetcher struct {
	total   int
	claim   int // Total reported when set, without serving the extra records
	failOn  int // page number that fails, 0 for none
	cursors []Cursor
}

func (f *fakeFetcher) FetchPage(ctx context.Context, resource string, cursor Cursor) (Page, error) {
	f.cursors = append(f.cursors, cursor)

	if cursor.Limit < 1 || cursor.Limit > PageCap {
		return Page{}, fmt.Errorf("limit %d out of range", cursor.Limit)
	}
	if f.failOn != 0 && cursor.Page == f.failOn && cursor.Limit > 1 {
		return Page{}, errors.New("502 Bad Gateway")
	}

	start := min((cursor.Page-1)*cursor.Limit, f.total)
	end := min(start+cursor.Limit, f.total)

	records := make([]record.Record, 0, end-start)
	for i := start; i < end; i++ {
		records = append(records, record.Of("id", i+1, "created_at", fmt.Sprintf("t%d", i+1), "extra", "x"))
	}
	reported := f.total
	if f.claim != 0 {
		reported = f.claim
	}
	return Page{Records: records, Total: reported}, nil
}

// pageFetches returns the cursors after the count probe.
func (f *fakeFetcher) pageFetches() []Cursor {
	if len(f.cursors) == 0 {
		return nil
	}
	return f.cursors[1:]
}

func ids(t *testing.T, records []record.Record) []int {
	t.Helper()
	out := make([]int, len(records))
	for i, r := range records {
		raw, ok := r.Get("id")
		if !ok {
			t.Fatalf("record %d has no id: %s", i, r)
		}
		if _, err := fmt.Sscan(string(raw), &out[i]); err != nil {
			t.Fatalf("record %d id %s: %v", i, raw, err)
		}
	}
	return out
}

func TestStartPage(t *testing.T) {
	tests := []struct {
		offset         int
		wantPage       int
		wantPageOffset int
	}{
		{0, 1, 0},
		{1, 1, 1},
		{249, 1, 249},
		{250, 2, 0},
		{260, 2, 10},
		{500, 3, 0},
		{1234, 5, 234},
	}

	for _, tt := range tests {
		page, pageOffset := StartPage(tt.offset, PageCap)
		if page != tt.wantPage || pageOffset != tt.wantPageOffset {
			t.Errorf("StartPage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.offset, PageCap, page, pageOffset, tt.wantPage, tt.wantPageOffset)
		}
	}
}

func TestCollect_OffsetIntoSecondPage(t *testing.T) {
	f := &fakeFetcher{total: 600}
	c := NewCollector(f, DefaultConfig())

	records, err := c.Collect(context.Background(), Request{Resource: "variants", Offset: 260, Limit: 10}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []int{261, 262, 263, 264, 265, 266, 267, 268, 269, 270}
	if diff := cmp.Diff(want, ids(t, records)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	fetches := f.pageFetches()
	if len(fetches) != 1 {
		t.Fatalf("page fetches = %v, want one", fetches)
	}
	if fetches[0] != (Cursor{Page: 2, Limit: PageCap}) {
		t.Errorf("cursor = %+v, want page 2 limit %d", fetches[0], PageCap)
	}
}

func TestCollect_CountProperty(t *testing.T) {
	totals := []int{0, 1, 249, 250, 251, 520}
	offsets := []int{0, 1, 10, 249, 250, 260, 519, 520, 700}
	limits := []int{0, 1, 10, 240, 250, 251, 500, 10000}

	for _, total := range totals {
		for _, offset := range offsets {
			for _, limit := range limits {
				name := fmt.Sprintf("total=%d/offset=%d/limit=%d", total, offset, limit)
				t.Run(name, func(t *testing.T) {
					f := &fakeFetcher{total: total}
					c := NewCollector(f, DefaultConfig())

					var progressed int
					records, err := c.Collect(context.Background(),
						Request{Resource: "products", Offset: offset, Limit: limit},
						func(n int) { progressed += n })
					if err != nil {
						t.Fatalf("Collect() error = %v", err)
					}

					want := min(limit, max(0, total-offset))
					if len(records) != want {
						t.Fatalf("len(records) = %d, want %d", len(records), want)
					}
					if progressed != want {
						t.Errorf("progress total = %d, want %d", progressed, want)
					}

					got := ids(t, records)
					for i, id := range got {
						if id != offset+i+1 {
							t.Fatalf("record %d id = %d, want %d", i, id, offset+i+1)
						}
					}

					for _, cur := range f.pageFetches() {
						if cur.Limit > PageCap {
							t.Errorf("cursor limit %d exceeds %d", cur.Limit, PageCap)
						}
					}
				})
			}
		}
	}
}

func TestCollect_OffsetBeyondTotal(t *testing.T) {
	f := &fakeFetcher{total: 40}
	c := NewCollector(f, DefaultConfig())

	records, err := c.Collect(context.Background(), Request{Resource: "variants", Offset: 40, Limit: 5}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
	if records == nil {
		t.Error("records = nil, want empty slice")
	}
	if n := len(f.pageFetches()); n != 0 {
		t.Errorf("page fetches = %d, want 0", n)
	}
}

func TestCollect_Projection(t *testing.T) {
	f := &fakeFetcher{total: 3}
	c := NewCollector(f, DefaultConfig())

	records, err := c.Collect(context.Background(),
		Request{Resource: "variants", Limit: 10, Fields: []string{"created_at", "id", "missing"}}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []record.Record{
		record.Of("id", 1, "created_at", "t1"),
		record.Of("id", 2, "created_at", "t2"),
		record.Of("id", 3, "created_at", "t3"),
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_FirstPageSize(t *testing.T) {
	f := &fakeFetcher{total: 1000}
	c := NewCollector(f, DefaultConfig())

	if _, err := c.Collect(context.Background(), Request{Resource: "variants", Offset: 5, Limit: 20}, nil); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []Cursor{{Page: 1, Limit: 25}}
	if diff := cmp.Diff(want, f.pageFetches()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_MultiplePages(t *testing.T) {
	f := &fakeFetcher{total: 1000}
	c := NewCollector(f, DefaultConfig())

	records, err := c.Collect(context.Background(), Request{Resource: "variants", Offset: 100, Limit: 500}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 500 {
		t.Fatalf("len(records) = %d, want 500", len(records))
	}

	want := []Cursor{{Page: 1, Limit: 250}, {Page: 2, Limit: 250}, {Page: 3, Limit: 250}}
	if diff := cmp.Diff(want, f.pageFetches()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_AbortsOnFailure(t *testing.T) {
	f := &fakeFetcher{total: 1000, failOn: 2}
	c := NewCollector(f, DefaultConfig())

	var progressed int
	records, err := c.Collect(context.Background(), Request{Resource: "variants", Limit: 600}, func(n int) { progressed += n })
	if err == nil {
		t.Fatal("Collect() error = nil, want failure")
	}
	if records != nil {
		t.Errorf("records = %d items, want nil", len(records))
	}
	if progressed != PageCap {
		t.Errorf("progress = %d, want %d", progressed, PageCap)
	}
}

func TestCollect_FirstPageFailure(t *testing.T) {
	f := &fakeFetcher{total: 10, failOn: 1}
	c := NewCollector(f, DefaultConfig())

	_, err := c.Collect(context.Background(), Request{Resource: "variants", Limit: 5}, nil)
	if err == nil {
		t.Fatal("Collect() error = nil, want failure on first page")
	}
}

func TestCollect_InvalidRequest(t *testing.T) {
	c := NewCollector(&fakeFetcher{total: 10}, DefaultConfig())

	tests := []struct {
		name string
		req  Request
	}{
		{"missing resource", Request{Limit: 1}},
		{"negative offset", Request{Resource: "variants", Offset: -1, Limit: 1}},
		{"negative limit", Request{Resource: "variants", Limit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Collect(context.Background(), tt.req, nil); err == nil {
				t.Error("Collect() error = nil, want validation error")
			}
		})
	}
}

func TestCollect_Cancelled(t *testing.T) {
	f := &fakeFetcher{total: 1000}
	c := NewCollector(f, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := c.Collect(ctx, Request{Resource: "variants", Limit: 1000}, func(int) {
		calls++
		if calls == 1 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}

func TestCount(t *testing.T) {
	f := &fakeFetcher{total: 321}
	c := NewCollector(f, DefaultConfig())

	total, err := c.Count(context.Background(), "variants")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 321 {
		t.Errorf("Count() = %d, want 321", total)
	}
	if f.cursors[0] != (Cursor{Page: 1, Limit: 1}) {
		t.Errorf("probe cursor = %+v, want {1 1}", f.cursors[0])
	}
}

func TestCollect_Sink(t *testing.T) {
	f := &fakeFetcher{total: 300}
	var messages []string
	cfg := DefaultConfig()
	cfg.Sink = func(message, verbosity string) {
		if verbosity != "vv" {
			t.Errorf("verbosity = %q, want vv", verbosity)
		}
		messages = append(messages, message)
	}
	c := NewCollector(f, cfg)

	if _, err := c.Collect(context.Background(), Request{Resource: "variants", Limit: 300}, nil); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []string{"Fetching variants page 1 ...", "Fetching variants page 2 ..."}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_StopsWhenPagesRunOut(t *testing.T) {
	tests := []struct {
		served      int
		wantFetches int
	}{
		{0, 1},
		{250, 2},
		{300, 2},
		{500, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("served=%d", tt.served), func(t *testing.T) {
			f := &fakeFetcher{total: tt.served, claim: 900}
			c := NewCollector(f, DefaultConfig())

			reported := 0
			got, err := c.Collect(context.Background(), Request{Resource: "variants", Limit: 900}, func(n int) { reported += n })
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if len(got) != tt.served {
				t.Errorf("len(Collect()) = %d, want %d", len(got), tt.served)
			}
			if reported != tt.served {
				t.Errorf("progress sum = %d, want %d", reported, tt.served)
			}
			if fetches := len(f.pageFetches()); fetches != tt.wantFetches {
				t.Errorf("page fetches = %d, want %d", fetches, tt.wantFetches)
			}
		})
	}
}

func TestCollectWithTotal_NoCountProbe(t *testing.T) {
	f := &fakeFetcher{total: 300}
	c := NewCollector(f, DefaultConfig())

	got, err := c.CollectWithTotal(context.Background(), Request{Resource: "variants", Offset: 260, Limit: 100}, 300, nil)
	if err != nil {
		t.Fatalf("CollectWithTotal() error = %v", err)
	}
	if len(got) != 40 {
		t.Errorf("len(CollectWithTotal()) = %d, want 40", len(got))
	}

	want := []Cursor{{Page: 2, Limit: PageCap}}
	if diff := cmp.Diff(want, f.cursors); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
}
