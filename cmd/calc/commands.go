package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/oriys/asynccalc/internal/calculator"
	"github.com/oriys/asynccalc/internal/domain"
	calcgrpc "github.com/oriys/asynccalc/internal/grpc"
	"github.com/oriys/asynccalc/internal/logging"
	"github.com/oriys/asynccalc/internal/notify"
	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add X Y",
		Short: "Add two integers and wait for the Added event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := parseOperands(args)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				out, err := s.driver.RunHelper(ctx, s.client, x, y)
				if err != nil {
					return err
				}
				return out.Err
			})
		},
	}
}

func addAsyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-async X Y",
		Short: "Add two integers with AddAsync and wait for AddCompleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := parseOperands(args)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				out, err := s.driver.RunShortcut(ctx, s.client, x, y)
				if err != nil {
					return err
				}
				return out.Err
			})
		},
	}
}

func delegateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delegate X Y",
		Short: "Add locally, first synchronously and then on another goroutine",
		Long:  "Call the add function value directly, then start it asynchronously and finish it from its continuation. No service is contacted.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := parseOperands(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logging.Default().Close()

			ctx, stop := signalContext()
			defer stop()

			d := newDriver(cfg)
			_, deferred, err := d.RunDelegate(ctx, domain.Add, x, y, x, y)
			if err != nil {
				return err
			}
			return deferred.Err
		},
	}
}

func overlapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overlap [X Y]...",
		Short: "Start several adds back to back and match results by correlation state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"1", "1", "2", "2"}
			}
			reqs, err := parsePairs(args)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				_, err := s.driver.RunOverlapped(ctx, s.client, reqs)
				return err
			})
		},
	}
}

func demoCmd() *cobra.Command {
	var latency time.Duration

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Host a Calculator in-process and run every call style against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("latency") {
				cfg.Server.Latency = latency
			}

			server := calcgrpc.NewServer(calculator.NewService(cfg.Server.Latency))
			bound, err := server.Start(net.JoinHostPort("127.0.0.1", "0"))
			if err != nil {
				return err
			}
			defer server.Stop()
			cfg.Client.Addr = bound.String()

			ctx, stop := signalContext()
			defer stop()

			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer s.Close()
			defer logging.Default().Close()

			return runDemo(ctx, s)
		},
	}

	cmd.Flags().DurationVar(&latency, "latency", 3*time.Second, "Simulated service latency")
	return cmd
}

// runDemo replays the full sequence: helper, shortcut, delegate, overlapped.
func runDemo(ctx context.Context, s *session) error {
	notes := s.notifier.Subscribe(ctx, notify.Topic(s.cfg.Redis.Topic))

	fmt.Println("== Calculator helper: Add(2, 3)")
	if _, err := s.driver.RunHelper(ctx, s.client, 2, 3); err != nil {
		return err
	}

	fmt.Println("== AddAsync shortcut: AddAsync(4, 2)")
	if _, err := s.driver.RunShortcut(ctx, s.client, 4, 2); err != nil {
		return err
	}

	fmt.Println("== Delegate: Add(3, 2)")
	if _, _, err := s.driver.RunDelegate(ctx, domain.Add, 3, 2, 3, 2); err != nil {
		return err
	}

	fmt.Println("== Overlapped: Add(1, 1), Add(2, 2)")
	if _, err := s.driver.RunOverlapped(ctx, s.client, []domain.AddRequest{{X: 1, Y: 1}, {X: 2, Y: 2}}); err != nil {
		return err
	}

	// helper, shortcut and both overlapped calls go through the client
	n := collectNotifications(notes, 4, time.Second)
	fmt.Printf("== %d completion notifications published\n", n)
	return nil
}

// collectNotifications reads from notes until want arrived, the channel
// closes or timeout passes, and returns how many were read.
func collectNotifications(notes <-chan domain.Notification, want int, timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	got := 0
	for got < want {
		select {
		case _, ok := <-notes:
			if !ok {
				return got
			}
			got++
		case <-timer.C:
			return got
		}
	}
	return got
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print completion notifications published by other calc processes",
		Long:  "Subscribe to the Redis completion topic and print each notification as JSON until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				return fmt.Errorf("watch requires redis: set redis.enabled or CALC_REDIS_ADDR")
			}

			n, closeRedis, err := openNotifier(cfg, false)
			if err != nil {
				return err
			}
			defer closeRedis()
			defer n.Close()

			ctx, stop := signalContext()
			defer stop()

			enc := json.NewEncoder(os.Stdout)
			for note := range n.Subscribe(ctx, notify.Topic(cfg.Redis.Topic)) {
				if err := enc.Encode(note); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.Default().Close()

	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}
