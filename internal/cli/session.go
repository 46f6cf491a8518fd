package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/mapengine/core"
	"github.com/signalsfoundry/mapengine/internal/config"
	"github.com/signalsfoundry/mapengine/internal/console"
	"github.com/signalsfoundry/mapengine/internal/logging"
	"github.com/signalsfoundry/mapengine/internal/observability"
	"github.com/signalsfoundry/mapengine/internal/query"
	"github.com/signalsfoundry/mapengine/kb"
)

// session is everything a data-backed command needs: resolved config, a
// loaded knowledge base and the console wiring.
type session struct {
	cfg     config.Config
	log     logging.Logger
	store   *kb.KnowledgeBase
	metrics *observability.QueryCollector
	console *console.Console
	queries *query.Service

	metricsSrv      *http.Server
	shutdownTracing func(context.Context) error
}

// withSession opens a session for cmd, runs fn and always closes the session.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer s.close(ctx)
	return fn(ctx, s)
}

func openSession(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	collector, err := observability.NewQueryCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("initialise metrics collector: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Writer:      cmd.ErrOrStderr(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialise tracing: %w", err)
	}

	s := &session{
		cfg:             cfg,
		log:             log,
		store:           kb.NewKnowledgeBase(),
		metrics:         collector,
		shutdownTracing: shutdownTracing,
	}

	unsubscribe := s.store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventLoaded {
			collector.SetDatasetCounts(ev.Stats.Countries, ev.Stats.Borders)
		}
	})
	defer unsubscribe()

	if err := s.load(ctx); err != nil {
		observability.ShutdownWithTimeout(ctx, shutdownTracing, log)
		return nil, err
	}

	s.metricsSrv = serveMetrics(cfg.Metrics.Addr, collector, log)
	s.console = console.New(cmd.InOrStdin(), cmd.OutOrStdout())
	s.queries = query.NewService(s.store, s.console, s.console, query.Options{
		Log:         log,
		Metrics:     collector,
		MaxAttempts: cfg.Prompt.MaxAttempts,
	})
	return s, nil
}

// load reads the configured dataset, or the embedded one, into the store.
func (s *session) load(ctx context.Context) error {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "dataset.load")
	defer span.End()

	var (
		ds     core.Dataset
		source string
		err    error
	)
	if s.cfg.UsesEmbeddedData() {
		source = "embedded"
		ds, err = core.DefaultDataset()
	} else {
		source = s.cfg.Data.Countries
		ds, err = core.LoadDatasetFiles(ctx, s.cfg.Data.Countries, s.cfg.Data.Adjacencies)
	}
	if err == nil {
		var summary *core.DatasetSummary
		summary, err = core.LoadDataset(s.store, source, ds)
		if err == nil {
			s.metrics.ObserveLoad(time.Since(start))
			span.SetAttributes(
				attribute.String("source", summary.Source),
				attribute.Int("countries", summary.Countries),
				attribute.Int("borders", summary.Borders),
			)
			s.log.Info(ctx, "dataset loaded",
				logging.String("source", summary.Source),
				logging.Int("countries", summary.Countries),
				logging.Int("borders", summary.Borders),
			)
			return nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.Error(ctx, "dataset load failed", logging.String("source", source), logging.Err(err))
	return fmt.Errorf("load dataset: %w", err)
}

func (s *session) close(ctx context.Context) {
	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = s.metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(ctx, s.shutdownTracing, s.log)
}

// resolveConfig layers explicitly set flags over file and environment
// configuration.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.getenv)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("countries") {
		cfg.Data.Countries = opts.countries
	}
	if flags.Changed("adjacencies") {
		cfg.Data.Adjacencies = opts.adjacencies
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if flags.Changed("tracing") {
		cfg.Tracing.Enabled = opts.tracing
	}
	if flags.Changed("max-attempts") {
		cfg.Prompt.MaxAttempts = opts.maxAttempts
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveMetrics(addr string, collector *observability.QueryCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
