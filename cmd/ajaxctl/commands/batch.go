package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Sternrassler/ajaxctl/pkg/batch"
	"github.com/Sternrassler/ajaxctl/pkg/checkpoint"
	"github.com/Sternrassler/ajaxctl/pkg/listfile"
	"github.com/Sternrassler/ajaxctl/pkg/logging"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		offset int
		limit  int
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file> <method> <endpointTemplate> [bodyTemplate]",
		Short: "Perform one call per record of a list file.",
		Long: "Perform one call per record of a list file.\n\n" +
			"The templates use {{field}} placeholders filled from each record. A failing\n" +
			"record is reported and the run continues with the next one. With --redis-url\n" +
			"progress is checkpointed and --resume continues an interrupted run.",
		Example: `  ajaxctl batch variants.json POST 'variants/{{id}}/channels' '{"channel":{"channel_id":321}}'`,
		Args:    cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, method, endpointTmpl := args[0], args[1], args[2]
			var bodyTmpl string
			if len(args) == 4 {
				bodyTmpl = args[3]
			}

			records, err := listfile.Read(file)
			if err != nil {
				return err
			}

			cp, err := a.openCheckpoint(ctx, file, method, endpointTmpl, bodyTmpl)
			if err != nil {
				return err
			}
			defer cp.close()

			start, stop := batch.Window(offset, limit, len(records))
			entry := &checkpoint.Entry{NextIndex: start}
			if resume {
				if !cp.enabled() {
					return errors.New("--resume needs --redis-url")
				}
				saved, err := cp.manager.Get(ctx, cp.key)
				switch {
				case err == nil:
					entry = saved
					if entry.NextIndex > start {
						start = entry.NextIndex
					}
					a.sink(fmt.Sprintf("Resuming at record %d ...", start), "v")
				case errors.Is(err, checkpoint.ErrNoCheckpoint):
				default:
					return err
				}
			}
			start = min(start, stop)

			client, err := a.signIn(ctx, "v")
			if err != nil {
				return err
			}

			executor := batch.NewExecutor(client, batch.Config{Sink: a.sink})
			summary, err := executor.Run(ctx, batch.Job{
				Records:          records,
				Method:           method,
				EndpointTemplate: endpointTmpl,
				BodyTemplate:     bodyTmpl,
				Offset:           start,
				Limit:            stop - start,
			}, func(o batch.Outcome) {
				if o.Err != nil {
					fmt.Fprintf(a.errOut, "Error: %v\n", o.Err)
				} else {
					a.printResponse(o.Response)
				}
				if cp.enabled() {
					entry.Advance(o.Index, o.Result())
					cp.save(ctx, entry)
				}
			})
			if err != nil {
				return err
			}

			if cp.enabled() {
				cp.delete(ctx)
			}

			a.sink("Done", "v")
			renderSummary(a, summary)
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of records to skip")
	cmd.Flags().IntVar(&limit, "limit", 10000, "Max number of records to process")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue from the stored checkpoint")

	return cmd
}

// batchCheckpoint is the optional checkpoint store of one batch run.
type batchCheckpoint struct {
	manager *checkpoint.Manager
	key     checkpoint.Key
	closeFn func() error
	logger  zerolog.Logger
}

func (a *app) openCheckpoint(ctx context.Context, file, method, endpointTmpl, bodyTmpl string) (*batchCheckpoint, error) {
	cp := &batchCheckpoint{logger: logging.NewLogger("checkpoint")}
	if a.cfg.RedisURL == "" {
		return cp, nil
	}

	redisClient, err := checkpoint.Connect(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	absFile, err := filepath.Abs(file)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	cp.manager = checkpoint.NewManager(redisClient, checkpoint.DefaultConfig())
	cp.key = checkpoint.Key{
		File:             absFile,
		Method:           method,
		EndpointTemplate: endpointTmpl,
		BodyTemplate:     bodyTmpl,
	}
	cp.closeFn = redisClient.Close
	return cp, nil
}

func (cp *batchCheckpoint) enabled() bool {
	return cp.manager != nil
}

// save stores progress; a failing store never stops the run. The record
// was sent, so it is stored even after ctx is cancelled.
func (cp *batchCheckpoint) save(ctx context.Context, entry *checkpoint.Entry) {
	if err := cp.manager.Save(context.WithoutCancel(ctx), cp.key, entry); err != nil {
		cp.logger.Warn().Err(err).Int("next_index", entry.NextIndex).Msg("Failed to save checkpoint")
	}
}

func (cp *batchCheckpoint) delete(ctx context.Context) {
	if err := cp.manager.Delete(context.WithoutCancel(ctx), cp.key); err != nil {
		cp.logger.Warn().Err(err).Msg("Failed to delete checkpoint")
	}
}

func (cp *batchCheckpoint) close() {
	if cp.closeFn != nil {
		cp.closeFn()
	}
}

func renderSummary(a *app, s batch.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(a.errOut)
	t.AppendHeader(table.Row{"Processed", "Succeeded", "Remote failures", "Failed"})
	t.AppendRow(table.Row{s.Processed, s.Succeeded, s.RemoteFailures, s.Failed})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
