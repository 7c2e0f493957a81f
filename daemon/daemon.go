package daemon

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/marabu/settings"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pprofRegistered   atomic.Bool
	metricsRegistered atomic.Bool
)

// Daemon runs one node and serves its health endpoints, and optionally the
// prometheus metrics and the profiler on the default mux.
type Daemon struct {
	logger   ulogger.Logger
	settings *settings.Settings
	nodeOpts []Option

	mu     sync.Mutex
	node   *Node
	server *http.Server
}

func New(logger ulogger.Logger, tSettings *settings.Settings, opts ...Option) *Daemon {
	return &Daemon{
		logger:   logger,
		settings: tSettings,
		nodeOpts: opts,
	}
}

// Start builds the node and starts the HTTP servers. It returns once the node
// is ready to handle objects.
func (d *Daemon) Start(ctx context.Context) (*Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	opts := append([]Option{WithLoggerFactory(func(serviceName string) ulogger.Logger {
		return d.logger.New(serviceName)
	})}, d.nodeOpts...)

	node, err := NewNode(ctx, d.settings, opts...)
	if err != nil {
		return nil, err
	}

	d.node = node

	d.startProfiler()

	if d.settings.PrometheusEndpoint != "" && !metricsRegistered.Load() {
		metricsRegistered.Store(true)
		d.logger.Infof("Starting prometheus endpoint on %s", d.settings.PrometheusEndpoint)
		http.Handle(d.settings.PrometheusEndpoint, promhttp.Handler())
	}

	if d.settings.HealthCheckPort > 0 {
		d.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", d.settings.HealthCheckPort),
			Handler:           d.HealthMux(),
			ReadHeaderTimeout: 20 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		server := d.server

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Errorf("Error starting health check server: %v", err)
			}
		}()

		d.logger.Infof("Health check endpoint listening on http://localhost:%d/health", d.settings.HealthCheckPort)
	}

	return node, nil
}

// HealthMux serves the readiness and liveness checks of the running node.
func (d *Daemon) HealthMux() *http.ServeMux {
	healthFunc := func(liveness bool) func(http.ResponseWriter, *http.Request) {
		return func(w http.ResponseWriter, r *http.Request) {
			d.mu.Lock()
			node := d.node
			d.mu.Unlock()

			if node == nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("node is not running"))

				return
			}

			status, details, err := node.Health(r.Context(), liveness)
			if err != nil {
				if status == http.StatusOK {
					status = http.StatusServiceUnavailable
				}

				w.WriteHeader(status)
				_, _ = w.Write([]byte(err.Error()))

				return
			}

			w.WriteHeader(status)
			_, _ = w.Write([]byte(details))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthFunc(false))
	mux.HandleFunc("/health/readiness", healthFunc(false))
	mux.HandleFunc("/health/liveness", healthFunc(true))

	return mux
}

func (d *Daemon) startProfiler() {
	profilerAddr := d.settings.ProfilerAddr
	if profilerAddr == "" || pprofRegistered.Load() {
		return
	}

	pprofRegistered.Store(true)

	go func() {
		d.logger.Infof("Profiler listening on http://%s/debug/pprof", profilerAddr)

		gocore.RegisterStatsHandlers()

		d.logger.Infof("StatsServer listening on http://%s/%s/stats", profilerAddr, d.settings.StatsPrefix)

		server := &http.Server{
			Addr:              profilerAddr,
			Handler:           nil,
			ReadHeaderTimeout: 20 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Errorf("Profiler stopped: %v", err)
		}
	}()
}

// Stop shuts the health server down and closes the node.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warnf("Error shutting down health check server: %v", err)
		}

		d.server = nil
	}

	if d.node == nil {
		return nil
	}

	err := d.node.Close(ctx)
	d.node = nil

	return err
}
