package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/ajaxctl/pkg/listfile"
	"github.com/Sternrassler/ajaxctl/pkg/pagination"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"
)

func newResourceCmd(a *app) *cobra.Command {
	resourceCmd := &cobra.Command{
		Use:   "resource",
		Short: "Read resources from the AJAX API.",
	}
	resourceCmd.AddCommand(newResourceCountCmd(a))
	resourceCmd.AddCommand(newResourceListCmd(a))
	return resourceCmd
}

func newResourceCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "count <resource>",
		Short:   "Print the number of active records of a resource.",
		Example: "ajaxctl resource count variants",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource := args[0]

			client, err := a.signIn(cmd.Context(), "v")
			if err != nil {
				return err
			}

			a.sink(fmt.Sprintf("Getting %s count ...", resource), "v")
			collector := pagination.NewCollector(pagination.NewResourceClient(client), pagination.DefaultConfig())
			total, err := collector.Count(cmd.Context(), resource)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, total)
			return nil
		},
	}
}

func newResourceListCmd(a *app) *cobra.Command {
	var (
		offset int
		limit  int
		fields []string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List a resource into a list file.",
		Long: "List a resource into a list file.\n\n" +
			"The resource must be served by the AJAX API as <base>/ajax/<resource>,\n" +
			"for example products or variants. Without --file the list is printed.",
		Example: "ajaxctl resource list products --limit=1 -v=vv --fields=id,created_at",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource := args[0]
			ctx := cmd.Context()

			client, err := a.signIn(ctx, "")
			if err != nil {
				return err
			}

			cfg := pagination.DefaultConfig()
			cfg.Sink = a.sink
			collector := pagination.NewCollector(pagination.NewResourceClient(client), cfg)

			a.sink(fmt.Sprintf("Getting %s count ...", resource), "")
			total, err := collector.Count(ctx, resource)
			if err != nil {
				return err
			}
			actualLimit := min(limit, max(0, total-offset))

			a.sink(fmt.Sprintf("Getting %s ...", resource), "")
			tracker, stop := startProgress(a.errOut, resource, actualLimit)
			records, err := collector.CollectWithTotal(ctx, pagination.Request{
				Resource: resource,
				Offset:   offset,
				Limit:    actualLimit,
				Fields:   trimFields(fields),
			}, total, func(added int) { tracker.Increment(int64(added)) })
			stop(err == nil)
			if err != nil {
				return err
			}

			if file == "" {
				if err := listfile.Encode(a.out, records); err != nil {
					return err
				}
				fmt.Fprintln(a.out)
			} else {
				a.sink(fmt.Sprintf("Saving %s to file ...", resource), "")
				if err := listfile.Write(file, records); err != nil {
					return err
				}
			}

			a.sink("Done", "")
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of records to skip")
	cmd.Flags().IntVar(&limit, "limit", 10000, "Max number of records to fetch")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Fields to keep as CSV, for example: id,created_at")
	cmd.Flags().StringVar(&file, "file", "", "List file to write")

	return cmd
}

func trimFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// startProgress renders a progress bar for total records on w. stop marks
// the tracker done (or errored) and waits for the final render.
func startProgress(w io.Writer, resource string, total int) (*progress.Tracker, func(ok bool)) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(40)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleBlocks)

	tracker := &progress.Tracker{
		Message: resource,
		Total:   int64(total),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(tracker)
	go pw.Render()
	for !pw.IsRenderInProgress() {
		time.Sleep(time.Millisecond)
	}

	return tracker, func(ok bool) {
		if ok {
			tracker.MarkAsDone()
		} else {
			tracker.MarkAsErrored()
		}
		pw.Stop()
		for pw.IsRenderInProgress() {
			time.Sleep(10 * time.Millisecond)
		}
	}
}
