package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"benchlab/internal/benchmark"
	"benchlab/internal/config"
	"benchlab/internal/httptask"
	"benchlab/internal/lab"
	"benchlab/internal/metrics"
	"benchlab/internal/progress"
	"benchlab/internal/report"
)

type runOptions struct {
	output      string
	quiet       bool
	verbose     bool
	metricsAddr string
	basePath    string
	httpTimeout time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <benchmark.yaml>...",
		Short: "Validate and run benchmarks",
		Long: "Validate every benchmark, then run them one after the other and print a summary per " +
			"benchmark. When a base path is set, report.txt and one CSV file per collector are " +
			"written below <base path>/<title>/<timestamp>/.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "text" && opts.output != "json" {
				return fmt.Errorf("--output must be 'text' or 'json', got %q", opts.output)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBenchmarks(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "text", "Summary format: text, json")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress the progress line")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log HTTP requests and responses at debug level")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.StringVar(&opts.basePath, "base-path", "", "Write report files below this directory (overrides basePath)")
	f.DurationVar(&opts.httpTimeout, "http-timeout", httptask.DefaultTimeout, "Timeout of a single HTTP request")
	return cmd
}

func runBenchmarks(ctx context.Context, stdout, stderr io.Writer, root *rootOptions, opts *runOptions, paths []string) error {
	logger := root.logger

	var debug *httptask.DebugLogger
	if opts.verbose {
		debug = httptask.NewDebugLogger(logger)
	}
	benches, err := loadBenchmarks(paths, config.BuildOptions{
		Client: &http.Client{Timeout: opts.httpTimeout},
		Debug:  debug,
	})
	if err != nil {
		return err
	}

	labOpts := []lab.Option{lab.WithLogger(logger)}
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv, addr, err := serveMetrics(opts.metricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown(srv)
		logger.Info("serving metrics", "addr", addr)
		labOpts = append(labOpts, lab.WithMetrics(metrics.New(reg)))
	}

	interval := progress.DefaultInterval
	if len(benches) > 0 {
		interval = benches[0].SampleIntervalOr(interval)
	}
	for _, b := range benches[min(len(benches), 1):] {
		if other := b.SampleIntervalOr(interval); other != interval {
			logger.Warn("progress uses the sample interval of the first benchmark",
				"benchmark", b.Title(), "sample_interval", other, "used", interval)
		}
	}
	prog := progress.NewProgress(opts.quiet, interval)
	prog.SetOutput(stderr)
	labOpts = append(labOpts, lab.WithReporter(prog))

	for _, b := range benches {
		if opts.basePath != "" {
			b.SetBasePath(opts.basePath)
		}
		if b.IsDefined(benchmark.BasePath) {
			b.AddReporter(report.File{})
			b.AddReporter(report.CSV{})
		}
	}

	prog.Start()
	runErr := lab.New(labOpts...).Run(ctx, benches...)
	prog.Stop()

	interrupted := runErr != nil && errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return runErr
	}
	if interrupted {
		prog.Print("Interrupted, reporting what was measured")
	}

	var summary benchmark.Reporter = report.Text{Out: stdout}
	if opts.output == "json" {
		summary = report.JSON{Out: stdout}
	}
	for _, b := range benches {
		if _, measured := b.Iterations(); !measured {
			prog.Printf("Benchmark %q was not measured", b.Title())
			continue
		}
		if err := summary.Generate(b); err != nil {
			return err
		}
		if err := b.GenerateReports(); err != nil {
			return fmt.Errorf("benchmark %q: reports: %w", b.Title(), err)
		}
	}
	return nil
}

func loadBenchmarks(paths []string, buildOpts config.BuildOptions) ([]*benchmark.Benchmark, error) {
	var errs []error
	benches := make([]*benchmark.Benchmark, 0, len(paths))
	for _, path := range paths {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		b, err := cfg.Build(buildOpts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		benches = append(benches, b)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return benches, nil
}

// serveMetrics starts an HTTP server exposing reg on /metrics and returns it
// with the address it listens on.
func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return srv, ln.Addr().String(), nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
