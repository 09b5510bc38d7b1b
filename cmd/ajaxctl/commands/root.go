package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/ajaxctl/internal/config"
	"github.com/Sternrassler/ajaxctl/pkg/logging"
	"github.com/Sternrassler/ajaxctl/pkg/metrics"
	"github.com/Sternrassler/ajaxctl/pkg/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	viper  *viper.Viper
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
	sink   logging.Sink

	metricsServer *metrics.Server
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{
		viper:  viper.New(),
		out:    out,
		errOut: errOut,
		sink:   logging.Discard,
	}

	rootCmd := &cobra.Command{
		Use:   "ajaxctl",
		Short: "ajaxctl drives the TradeGecko AJAX API through a signed-in web session.",
		Long: "ajaxctl drives the TradeGecko AJAX API through a signed-in web session.\n\n" +
			"It is recommended that username and password be set as environment variables\n" +
			"TG_USERNAME and TG_PASSWORD, respectively.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	sessionDefaults := session.DefaultConfig()
	config.RegisterFlags(rootCmd.PersistentFlags(), config.Config{
		BaseURL:          sessionDefaults.BaseURL,
		CloudflareBypass: sessionDefaults.CloudflareBypass,
	})

	rootCmd.AddCommand(newResourceCmd(a))
	rootCmd.AddCommand(newFetchCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))

	return rootCmd
}

// ExecuteContext runs the command line and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.viper, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Setup(logging.Config{
		Level:  logging.VerbosityLevel(cfg.Verbosity),
		Pretty: cfg.LogPretty,
		Output: a.errOut,
	})
	a.sink = logging.NewVerbositySink(a.out, cfg.Verbosity)

	if cfg.MetricsAddr != "" {
		a.metricsServer = metrics.NewServer(cfg.MetricsAddr)
		if err := a.metricsServer.Start(); err != nil {
			a.metricsServer = nil
			return err
		}
	}
	return nil
}

func (a *app) close() error {
	if a.metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.metricsServer.Shutdown(ctx)
	a.metricsServer = nil
	return err
}

// signIn opens a session with the configured credentials.
func (a *app) signIn(ctx context.Context, verbosity string) (*session.Client, error) {
	cfg := session.DefaultConfig()
	cfg.BaseURL = a.cfg.BaseURL
	cfg.CloudflareBypass = a.cfg.CloudflareBypass
	cfg.RateLimit.RequestsPerSecond = a.cfg.RateLimit

	client, err := session.New(cfg)
	if err != nil {
		return nil, err
	}

	a.sink("Signing in ...", verbosity)
	if err := client.SignIn(ctx, a.cfg.Username, a.cfg.Password); err != nil {
		return nil, err
	}
	return client, nil
}

// printResponse writes a response outcome: the compact JSON payload, or
// "Response: <status>" for a remote failure.
func (a *app) printResponse(resp *session.Response) {
	if resp.Failed() {
		fmt.Fprintf(a.out, "Response: %s\n", resp.String())
		return
	}
	fmt.Fprintln(a.out, resp.String())
}
