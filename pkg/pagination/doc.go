// Package pagination collects records from the application's paged resource
// endpoints.
//
// The AJAX API serves resources in pages of at most PageCap records, addressed
// by page number and page size. A Collector turns a record offset and limit
// into page requests, drops the records before the offset from the first
// page, truncates the last page to the limit and projects every record onto
// the requested fields.
//
// Example usage:
//
//	fetcher := pagination.NewResourceClient(sessionClient)
//	collector := pagination.NewCollector(fetcher, pagination.DefaultConfig())
//	records, err := collector.Collect(ctx, pagination.Request{
//		Resource: "variants",
//		Offset:   260,
//		Limit:    10,
//		Fields:   []string{"id", "sku"},
//	}, nil)
//
// The collector:
//   - Probes the resource count first and clamps the limit to it
//   - Fetches pages strictly one after another
//   - Stops on an empty page or when the limit is reached
//   - Aborts on the first failed page (no partial result, no retry)
package pagination
