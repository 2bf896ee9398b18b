package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/oriys/asynccalc/internal/async"
	"github.com/oriys/asynccalc/internal/calculator"
	"github.com/oriys/asynccalc/internal/config"
	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/driver"
	calcgrpc "github.com/oriys/asynccalc/internal/grpc"
	"github.com/oriys/asynccalc/internal/logging"
	"github.com/oriys/asynccalc/internal/notify"
	"github.com/oriys/asynccalc/internal/observability"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// clientLogLevel keeps the demo transcript free of info logs unless the
// config file, CALC_LOG_LEVEL or --log-level asks for them.
const clientLogLevel = "warn"

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Observability.Logging.Level = clientLogLevel
	if configFile != "" {
		if err := config.LoadFileInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Client.Addr = addr
	}
	if flags.Changed("poll-interval") {
		cfg.Client.PollInterval = pollInterval
	}
	if flags.Changed("log-level") {
		cfg.Observability.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	if invocationLog != "" {
		if err := logging.Default().SetOutput(invocationLog); err != nil {
			return nil, fmt.Errorf("open invocation log: %w", err)
		}
	}
	return cfg, nil
}

// session is everything one calc command needs to talk to the service.
type session struct {
	cfg      *config.Config
	client   *calculator.Client
	driver   *driver.Driver
	notifier notify.Notifier
	closers  []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newSession dials the service at cfg.Client.Addr and wires the client's
// scheduler, tracing and completion fan-out from cfg. Without Redis,
// inProcess selects an in-process fan-out instead of discarding completions.
func newSession(ctx context.Context, cfg *config.Config, inProcess bool) (*session, error) {
	s := &session{
		cfg:    cfg,
		driver: newDriver(cfg),
	}

	serviceName := cfg.Observability.Tracing.ServiceName
	if serviceName == "" || serviceName == "asynccalc" {
		serviceName = "calc"
	}
	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: serviceName,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s.closers = append(s.closers, func() { observability.Shutdown(context.Background()) })

	remote, err := calcgrpc.Dial(cfg.Client.Addr, cfg.Client.Timeout)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() { remote.Close() })

	n, closeRedis, err := openNotifier(cfg, inProcess)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.notifier = n
	s.closers = append(s.closers, closeRedis, func() { n.Close() })

	// Closers run in reverse, so the pool drains queued calls while the
	// notifier and connection are still open.
	var opts []async.Option
	if cfg.Invoker.Workers > 0 {
		pool := async.NewWorkerPool(async.PoolConfig{Workers: cfg.Invoker.Workers})
		pool.Start()
		s.closers = append(s.closers, pool.Stop)
		opts = append(opts, async.WithScheduler(pool))
	}
	s.client = calculator.NewClient(remote, opts...)
	s.client.PublishTo(n, notify.Topic(cfg.Redis.Topic))

	return s, nil
}

// openNotifier returns the completion fan-out configured by cfg and a func
// releasing its connection.
func openNotifier(cfg *config.Config, inProcess bool) (notify.Notifier, func(), error) {
	if !cfg.Redis.Enabled {
		if inProcess {
			return notify.NewChannelNotifier(), func() {}, nil
		}
		return notify.NewNoopNotifier(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
	}
	return notify.NewRedisNotifier(client), func() { client.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseOperand(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid operand %q: must be a 32-bit integer", s)
	}
	return int32(v), nil
}

func parseOperands(args []string) (int32, int32, error) {
	x, err := parseOperand(args[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := parseOperand(args[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parsePairs(args []string) ([]domain.AddRequest, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("operands must come in pairs, got %d values", len(args))
	}
	reqs := make([]domain.AddRequest, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		x, y, err := parseOperands(args[i : i+2])
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, domain.AddRequest{X: x, Y: y})
	}
	return reqs, nil
}

func newDriver(cfg *config.Config) *driver.Driver {
	return driver.New(os.Stdout, cfg.Client.PollInterval)
}
