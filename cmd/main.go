package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/ecotogether/internal/adapters/capture"
	"github.com/okian/ecotogether/internal/adapters/classifier"
	"github.com/okian/ecotogether/internal/adapters/http/api"
	"github.com/okian/ecotogether/internal/adapters/http/site"
	"github.com/okian/ecotogether/internal/adapters/http/swagger"
	"github.com/okian/ecotogether/internal/adapters/motion"
	"github.com/okian/ecotogether/internal/adapters/repository"
	app "github.com/okian/ecotogether/internal/app"
	"github.com/okian/ecotogether/internal/config"
	"github.com/okian/ecotogether/internal/domain/scoring"
	"github.com/okian/ecotogether/internal/observability"
	"github.com/okian/ecotogether/pkg/logger"
	"github.com/okian/ecotogether/pkg/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// HTTP server timeout constants. Uploads and video decoding are slow, so
// the body and write timeouts are generous.
const (
	readTimeout               = 2 * time.Minute
	writeTimeout              = 2 * time.Minute
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		log.Warn(ctx, "sentry disabled", logger.Error(err))
	}
	defer flush()

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		flush()
		os.Exit(1)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// buildService opens the ledger, loads the classifier and starts the
// submission service. The classifier is required; without it no photo can
// ever earn points.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	ledger, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, repository.WithLogger(log.Named("ledger")))
	if err != nil {
		return nil, err
	}
	if err := ledger.Migrate(ctx); err != nil {
		_ = ledger.Close()
		return nil, err
	}

	clf, err := classifier.Load(ctx, cfg.ModelPath, cfg.LabelsPath, classifier.WithLogger(log.Named("classifier")))
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	verifier := newMotionVerifier(cfg, log)

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithLedger(ledger),
		app.WithClassifier(clf),
		app.WithCaptureChecker(capture.NewChecker(capture.WithLogger(log.Named("capture")))),
		app.WithMotionVerifier(verifier),
		app.WithScorer(scoring.NewEngine(scoring.WithConfidenceThreshold(cfg.ConfidenceThreshold))),
		app.WithErrorReporter(observability.CaptureErr),
		app.WithPendingTTL(cfg.PendingTTL()),
		app.WithPendingSize(cfg.PendingSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithRewardThreshold(cfg.RewardThreshold),
	)
	if err := svc.Start(ctx); err != nil {
		_ = clf.Close()
		_ = ledger.Close()
		return nil, err
	}
	return svc, nil
}

// newMotionVerifier compares MotionMaxFrames frames against the one before
// them, so ffmpeg has to decode the reference frame on top of that.
func newMotionVerifier(cfg *config.Config, log logger.Logger) *motion.Verifier {
	return motion.NewVerifier(
		motion.NewFFmpegOpener(cfg.FFmpegPath, cfg.FFprobePath, cfg.MotionMaxFrames+1),
		motion.WithThreshold(cfg.MotionThreshold),
		motion.WithMaxFrames(cfg.MotionMaxFrames),
		motion.WithLogger(log.Named("motion")),
	)
}

// newMux registers the docs, the API and the upload page.
func newMux(ctx context.Context, deps api.Dependencies, cfg *config.Config, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(deps,
		api.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		api.WithLogger(log.Named("api")),
	).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc api.StatsProvider) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. Expired evaluations
// leave the pending cache without a call, so the gauge is refreshed here.
func updateServiceMetrics(ctx context.Context, svc api.StatsProvider) {
	stats := svc.GetStats(ctx)
	if pending, ok := stats["pending_evaluations"].(int); ok {
		metrics.UpdatePendingEvaluations(pending)
	}
}
