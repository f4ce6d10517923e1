// Command dnaserver runs the ingestion pipeline's TCP server: it binds
// the configured port, feeds parsed records through the bounded work
// queue to a worker pool, and persists accepted sequences to disk.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/inchrosil/dnapipe/internal/cli/output"
	"github.com/inchrosil/dnapipe/internal/cli/timeutil"
	"github.com/inchrosil/dnapipe/internal/dlog"
	"github.com/inchrosil/dnapipe/internal/dnaconfig"
	"github.com/inchrosil/dnapipe/internal/dnametrics"
	"github.com/inchrosil/dnapipe/internal/ingress"
	"github.com/inchrosil/dnapipe/internal/queue"
	"github.com/inchrosil/dnapipe/internal/telemetry"
	"github.com/inchrosil/dnapipe/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	cfgFile   string
	startedAt time.Time
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dnaserver [port]",
		Short: "DNA ingestion and compression pipeline server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServer,
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/dnapipe/config.yaml)")
	cmd.SilenceUsage = true
	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := dnaconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Server.Port = port
	}

	if err := dlog.Init(dlog.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    "dnaserver",
		ServiceVersion: version,
		Endpoint:       cfg.Profiling.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer stopProfiling()

	stopWatch, err := dnaconfig.Watch(cfgFile, func(updated *dnaconfig.Config) {
		dlog.SetLevel(updated.Logging.Level)
		dlog.Info("config reloaded", dlog.KeyPath, cfgFile)
	}, func(err error) {
		dlog.Warn("config reload failed", dlog.Err(err))
	})
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer stopWatch()

	metrics := dnametrics.New(cfg.Metrics.Enabled)
	startedAt = time.Now()

	q := queue.New(cfg.Queue.Capacity)
	pool := worker.New(q, cfg.Workers.Count, cfg.Storage.OutDir, metrics)
	pool.Start()

	srv := ingress.New(ingress.Config{
		Port:            cfg.Server.Port,
		RecvChunk:       int(cfg.Server.RecvChunk),
		MaxClients:      cfg.Server.MaxClients,
		MaxSeqLen:       cfg.Server.MaxSeqLen,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, q, metrics)

	ctx, cancel := context.WithCancel(context.Background())

	var httpServer *http.Server
	if cfg.Metrics.Enabled && cfg.Metrics.Port > 0 {
		httpServer = newStatusServer(cfg.Metrics.Port, srv, metrics)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				dlog.Error("status server error", dlog.Err(err))
			}
		}()
	}

	go printStatusLoop(ctx, srv, metrics)

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	dlog.Info("dnaserver listening", dlog.KeyPath, fmt.Sprintf(":%d", cfg.Server.Port))

	select {
	case <-sigCh:
		dlog.Info("shutdown signal received")
	case err := <-serveDone:
		if err != nil {
			dlog.Error("ingress server error", dlog.Err(err))
		}
	}

	cancel()
	<-serveDone
	pool.Wait()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			dlog.Error("status server shutdown error", dlog.Err(err))
		}
	}

	dlog.Info("dnaserver stopped")
	return nil
}

// newStatusServer builds the optional chi-based /status and /metrics
// HTTP surface alongside the TCP ingestion port.
func newStatusServer(port int, srv *ingress.Server, metrics *dnametrics.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := output.PrintJSON(w, statusSnapshot(srv, metrics)); err != nil {
			dlog.Error("status handler error", dlog.Err(err))
		}
	})
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: r}
}

type statusLine struct {
	Uptime            string `json:"uptime" yaml:"uptime"`
	StartedAt         string `json:"started_at" yaml:"started_at"`
	ActiveConnections int32  `json:"active_connections" yaml:"active_connections"`
	TotalConnections  uint64 `json:"total_connections" yaml:"total_connections"`
	SequencesAccepted uint64 `json:"sequences_accepted" yaml:"sequences_accepted"`
	BytesReceived     uint64 `json:"bytes_received" yaml:"bytes_received"`
	ValidationErrors  uint64 `json:"validation_errors" yaml:"validation_errors"`
	ParsingErrors     uint64 `json:"parsing_errors" yaml:"parsing_errors"`
	StorageErrors     uint64 `json:"storage_errors" yaml:"storage_errors"`
	QueueDepth        int    `json:"queue_depth" yaml:"queue_depth"`
}

func statusSnapshot(srv *ingress.Server, metrics *dnametrics.Metrics) statusLine {
	snap := metrics.Snapshot()
	return statusLine{
		Uptime:            timeutil.FormatUptime(time.Since(startedAt).String()),
		StartedAt:         startedAt.Format(time.RFC3339),
		ActiveConnections: srv.ActiveConnections(),
		TotalConnections:  snap.ConnectionsAccepted,
		SequencesAccepted: snap.SequencesAccepted,
		BytesReceived:     snap.BytesReceived,
		ValidationErrors:  snap.ValidationErrors,
		ParsingErrors:     snap.ParsingErrors,
		StorageErrors:     snap.StorageErrors,
		QueueDepth:        snap.QueueDepth,
	}
}

// printStatusLoop prints the periodic one-line status summary required
// by the error-handling design's user-visible failure behaviour: active
// connections, sequences, bytes, errors, throughput, and uptime.
func printStatusLoop(ctx context.Context, srv *ingress.Server, metrics *dnametrics.Metrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastBytes uint64
	lastAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := metrics.Snapshot()
			elapsed := now.Sub(lastAt).Seconds()
			var rate float64
			if elapsed > 0 {
				rate = float64(snap.BytesReceived-lastBytes) / elapsed
			}
			lastBytes = snap.BytesReceived
			lastAt = now

			fmt.Printf("[dnaserver] active=%d sequences=%d bytes=%s rate=%s/s errors=%d uptime=%s\n",
				srv.ActiveConnections(),
				snap.SequencesAccepted,
				humanize.Bytes(snap.BytesReceived),
				humanize.Bytes(uint64(rate)),
				snap.ValidationErrors+snap.ParsingErrors+snap.StorageErrors,
				timeutil.FormatUptime(time.Since(startedAt).String()))
		}
	}
}
