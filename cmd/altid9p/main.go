// Command altid9p talks to altid services over 9P from the command
// line.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"aqwari.net/net/altid"
	"aqwari.net/net/altid/internal/cmdutil"
	"aqwari.net/net/altid/internal/config"
)

// options shared by every subcommand
type options struct {
	configPath  string
	ll          cmdutil.LogLevel
	metricsAddr string
	trace       bool

	// overrides the transport, for tests
	dial altid.DialFunc

	cfg     config.Config
	logger  log.Logger
	metrics *altid.Metrics
	reg     *prometheus.Registry
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "altid9p: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "altid9p",
		Short: "Read and write files on altid services",
		Long: `altid9p is a 9P2000 client for altid services.

A target is either the name of a service from the config file or
an endpoint such as localhost:564, tcp!host!port, unix:///path or
ws://host/path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup()
		},
	}
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "path to the config file")
	fs.Var(&o.ll, "log.level", "level to display logs at")
	fs.StringVar(&o.metricsAddr, "metrics.addr", "", "serve prometheus metrics on this address while running")
	fs.BoolVar(&o.trace, "trace", false, "log every 9P message")

	rootCmd.AddCommand(
		readCmd(o),
		writeCmd(o),
		statCmd(o),
		rmCmd(o),
		createCmd(o),
		servicesCmd(o),
	)
	return rootCmd
}

func (o *options) setup() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	if !o.ll.IsSet() {
		if err := o.ll.Set(cfg.LogLevel); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = level.NewFilter(l, o.ll.FilterOption())
	o.logger = log.With(l, "ts", log.DefaultTimestamp, "caller", log.DefaultCaller)

	o.reg = prometheus.NewRegistry()
	o.metrics = altid.NewMetrics(o.reg)
	return nil
}

// client returns the Client and endpoint for a target.
func (o *options) client(target string) (*altid.Client, string) {
	var (
		client   *altid.Client
		endpoint = target
	)
	if svc, ok := o.cfg.Service(target); ok {
		client = o.cfg.ServiceClient(svc)
		endpoint = svc.Addr
	} else {
		client = o.cfg.Client()
	}
	o.configure(client)
	return client, endpoint
}

func (o *options) configure(client *altid.Client) {
	client.Logger = o.logger
	client.Metrics = o.metrics
	if o.dial != nil {
		client.Dialer = o.dial
	}
	if o.trace {
		client.TraceLog = o.logger
	}
}

// run runs op alongside the signal handler and, if enabled, the
// metrics server. It returns when op returns or a signal arrives.
func (o *options) run(op func(ctx context.Context) error) error {
	var group run.Group

	// operation worker
	{
		ctx, cancel := context.WithCancel(context.Background())
		group.Add(func() error {
			return op(ctx)
		}, func(_ error) {
			cancel()
		})
	}

	// signal worker
	{
		ctx, cancel := context.WithCancel(context.Background())
		group.Add(func() error {
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case sig := <-ch:
				level.Info(o.logger).Log("msg", "received shutdown signal")
				return fmt.Errorf("interrupted by %s", sig)
			case <-ctx.Done():
			}
			return nil
		}, func(_ error) {
			cancel()
		})
	}

	// metrics worker
	if o.metricsAddr != "" {
		lis, err := net.Listen("tcp", o.metricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		r := mux.NewRouter()
		r.Handle("/metrics", promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{}))
		srv := http.Server{Handler: r}

		group.Add(func() error {
			level.Info(o.logger).Log("msg", "serving metrics", "addr", lis.Addr())
			err := srv.Serve(lis)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(_ error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
			}
		})
	}

	return group.Run()
}
