// Command trafficd serves the traffic capacity API over HTTP.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"trafficcap/internal/adapters/httpapi"
	"trafficcap/internal/adapters/snapshots"
	"trafficcap/internal/blob"
	"trafficcap/internal/config"
	"trafficcap/internal/core"
	redisevents "trafficcap/internal/infra/events/redis"
	"trafficcap/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "trafficd: %v\n", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	a, err := newApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.close()
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	return a.serve(ctx, ln)
}

// app holds the wired daemon components.
type app struct {
	logger    *logging.Logger
	store     core.PersistentStore
	service   *core.Service
	scheduler *snapshots.Scheduler
	handler   http.Handler
	closers   []io.Closer
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	logger := logging.New("trafficd", cfg.LogLevel, out)
	a := &app{logger: logger}

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a.store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	if m, ok := store.(interface{ Migration() core.MigrationReport }); ok {
		if r := m.Migration(); r.Changed() {
			logger.Warn("stored state repaired on load",
				"dropped_traffic", r.DroppedTraffic,
				"clamped_limits", r.ClampedLimits,
				"dropped_housing", r.DroppedHousing,
				"reassigned_ids", r.ReassignedIDs,
			)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRecorder, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger.With("component", "service")),
		core.WithMetricsRecorder(core.FanoutMetricsRecorder{promRecorder, core.NewExpvarMetricsRecorder("")}),
	}
	if !cfg.StrictTrafficRef {
		opts = append(opts, core.WithLenientTrafficReference())
	}
	if cfg.Redis.Enabled() {
		client, err := redisevents.Dial(ctx, redisevents.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.close()
			return nil, err
		}
		publisher := redisevents.NewAuditPublisher(client, cfg.Redis.Channel, logger.With("component", "events"))
		a.closers = append(a.closers, client, publisher)
		opts = append(opts, core.WithAuditRecorder(publisher))
	}
	a.service = core.NewService(store, opts...)

	archive, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Blob.Driver, err)
	}
	exporter := snapshots.NewExporter(store, archive, snapshots.WithLogger(logger.With("component", "snapshots")))
	if cfg.SnapshotSchedule != "" {
		a.scheduler, err = snapshots.NewScheduler(exporter, cfg.SnapshotSchedule, cfg.SnapshotKeep)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	router := httpapi.NewRouter(a.service,
		httpapi.WithLogger(logger.With("component", "http")),
		httpapi.WithSnapshots(exporter),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	)
	router.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	a.handler = router

	logger.Info("trafficd configured",
		"storage", cfg.Storage.Driver,
		"blob", archive.Driver(),
		"redis", cfg.Redis.Enabled(),
		"snapshot_schedule", cfg.SnapshotSchedule,
		"strict_traffic_ref", cfg.StrictTrafficRef,
	)
	return a, nil
}

// serve runs the HTTP server on ln until ctx is cancelled, then shuts down gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errorLog, errorPipe := serverErrorLog(a.logger)
	defer errorPipe.Close()
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          errorLog,
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("snapshot scheduler stop", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// serverErrorLog routes net/http errors into logger at error level. Closing
// the returned pipe stops the forwarding goroutine.
func serverErrorLog(logger *logging.Logger) (*log.Logger, io.Closer) {
	w := logger.Logrus().WriterLevel(logrus.ErrorLevel)
	return log.New(w, "", 0), w
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close", "error", err)
		}
	}
	a.closers = nil
}
