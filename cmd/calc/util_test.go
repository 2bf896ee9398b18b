package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
	"github.com/spf13/cobra"
)

// testCommand mirrors the persistent flags registered by main.
func testCommand(t *testing.T, file string) *cobra.Command {
	t.Helper()
	prevFile, prevLevel, prevAddr, prevPoll := configFile, logLevel, addr, pollInterval
	t.Cleanup(func() {
		configFile, logLevel, addr, pollInterval = prevFile, prevLevel, prevAddr, prevPoll
	})
	configFile = file

	cmd := &cobra.Command{Use: "calc"}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 250*time.Millisecond, "")
	return cmd
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calc.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFileSetsLogLevel(t *testing.T) {
	t.Setenv("CALC_LOG_LEVEL", "")
	cmd := testCommand(t, writeConfig(t, "observability:\n  logging:\n    level: debug\n"))

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got := cfg.Observability.Logging.Level; got != "debug" {
		t.Fatalf("level = %q, want debug from the config file", got)
	}
}

func TestLoadConfigDefaultLogLevel(t *testing.T) {
	t.Setenv("CALC_LOG_LEVEL", "")
	cmd := testCommand(t, writeConfig(t, "client:\n  addr: calc:9090\n"))

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got := cfg.Observability.Logging.Level; got != clientLogLevel {
		t.Fatalf("level = %q, want %q", got, clientLogLevel)
	}
	if cfg.Client.Addr != "calc:9090" {
		t.Fatalf("addr = %q, want the file's value", cfg.Client.Addr)
	}
}

func TestLoadConfigFlagOverridesFile(t *testing.T) {
	t.Setenv("CALC_LOG_LEVEL", "")
	cmd := testCommand(t, writeConfig(t, "observability:\n  logging:\n    level: debug\n"))
	if err := cmd.Flags().Set("log-level", "error"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got := cfg.Observability.Logging.Level; got != "error" {
		t.Fatalf("level = %q, want error from --log-level", got)
	}
}

func TestCollectNotifications(t *testing.T) {
	notes := make(chan domain.Notification, 3)
	notes <- domain.Notification{ID: "a"}
	notes <- domain.Notification{ID: "b"}

	if n := collectNotifications(notes, 4, 20*time.Millisecond); n != 2 {
		t.Fatalf("got %d, want 2 before the timeout", n)
	}

	notes <- domain.Notification{ID: "c"}
	close(notes)
	if n := collectNotifications(notes, 4, time.Second); n != 1 {
		t.Fatalf("got %d, want 1 before the channel closed", n)
	}
}

func TestParseOperand(t *testing.T) {
	v, err := parseOperand("-2147483648")
	if err != nil || v != -2147483648 {
		t.Fatalf("got (%d, %v)", v, err)
	}
	if _, err := parseOperand("2147483648"); err == nil {
		t.Fatal("out of range operand should be rejected")
	}
	if _, err := parseOperand("two"); err == nil {
		t.Fatal("non-numeric operand should be rejected")
	}
}

func TestParsePairs(t *testing.T) {
	reqs, err := parsePairs([]string{"1", "1", "2", "2"})
	if err != nil {
		t.Fatalf("parsePairs: %v", err)
	}
	if len(reqs) != 2 || reqs[1].X != 2 || reqs[1].Y != 2 {
		t.Fatalf("got %+v", reqs)
	}
	if _, err := parsePairs([]string{"1", "2", "3"}); err == nil {
		t.Fatal("odd operand count should be rejected")
	}
}
