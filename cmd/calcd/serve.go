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

	"github.com/oriys/asynccalc/internal/calculator"
	"github.com/oriys/asynccalc/internal/config"
	calcgrpc "github.com/oriys/asynccalc/internal/grpc"
	"github.com/oriys/asynccalc/internal/logging"
	"github.com/oriys/asynccalc/internal/metrics"
	"github.com/oriys/asynccalc/internal/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var (
		grpcAddr    string
		metricsAddr string
		latency     time.Duration
		logLevel    string
		coalesce    bool
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"daemon"},
		Short:   "Run the Calculator gRPC service",
		Long:    "Serve Calculator.Add over gRPC with simulated latency, plus /metrics and /stats over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("grpc") {
				cfg.Server.GRPCAddr = grpcAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("latency") {
				cfg.Server.Latency = latency
			}
			if cmd.Flags().Changed("coalesce") {
				cfg.Server.Coalesce = coalesce
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
				cfg.Observability.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if cfg.Observability.Tracing.ServiceName == "" || cfg.Observability.Tracing.ServiceName == "asynccalc" {
				cfg.Observability.Tracing.ServiceName = "calcd"
			}

			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
			logging.SetLevelFromString(cfg.Daemon.LogLevel)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, nil)
			}

			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc", ":9090", "gRPC listen address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "HTTP address for /metrics and /stats (empty to disable)")
	cmd.Flags().DurationVar(&latency, "latency", 3*time.Second, "Simulated service latency per call")
	cmd.Flags().BoolVar(&coalesce, "coalesce", false, "Share one computation among concurrent identical requests")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var adder calculator.Adder = calculator.NewService(cfg.Server.Latency)
	if cfg.Server.Coalesce {
		adder = calculator.Coalesce(adder)
	}
	grpcServer := calcgrpc.NewServer(metered(adder))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("start gRPC server: %w", err)
	}
	logging.Op().Info("Calculator gRPC API started",
		"addr", lis.Addr().String(),
		"latency", cfg.Server.Latency,
		"coalesce", cfg.Server.Coalesce,
	)

	var httpServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.PrometheusHandler())
		mux.Handle("/stats", metrics.Global().JSONHandler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		httpServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           observability.HTTPMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	if httpServer != nil {
		g.Go(func() error {
			logging.Op().Info("metrics endpoint started", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logging.Op().Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if httpServer != nil {
			httpServer.Shutdown(shutdownCtx)
		}
		grpcServer.Stop()
		return nil
	})

	return g.Wait()
}

// metered records every served add in the process-local stats.
func metered(next calculator.Adder) calculator.Adder {
	return calculator.AdderFunc(func(ctx context.Context, x, y int32) (int32, error) {
		start := time.Now()
		v, err := next.Add(ctx, x, y)
		metrics.Global().RecordInvocation("serve_add", time.Since(start).Milliseconds(), err == nil)
		return v, err
	})
}
