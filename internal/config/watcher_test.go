package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ninedomain/loreengine/internal/observability"
)

func writeTestConfig(t *testing.T, path string, defaultRPM int) {
	t.Helper()
	body := fmt.Sprintf("version: 1\nrate_limit:\n  default_rpm: %d\n", defaultRPM)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, 10)

	logger := observability.NewLogger(observability.LogConfig{})
	w := NewWatcher(path, 20*time.Millisecond, logger)

	var mu sync.Mutex
	var lastRPM int
	var calls int
	w.Subscribe(func(cfg *Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if err == nil {
			lastRPM = cfg.RateLimit.DefaultRPM
		}
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer func() { _ = w.Close() }()

	writeTestConfig(t, path, 42)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := calls > 0 && lastRPM == 42
		mu.Unlock()
		if got {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected reload to observe default_rpm=42, last seen %d after %d calls", lastRPM, calls)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_ReportsErrorOnInvalidRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, 10)

	logger := observability.NewLogger(observability.LogConfig{})
	w := NewWatcher(path, 20*time.Millisecond, logger)

	var mu sync.Mutex
	var sawErr bool
	w.Subscribe(func(cfg *Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			sawErr = true
		}
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer func() { _ = w.Close() }()

	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0o644); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := sawErr
		mu.Unlock()
		if got {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected reload callback to observe a decode error")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_CloseStopsWatchLoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, 10)

	logger := observability.NewLogger(observability.LogConfig{})
	w := NewWatcher(path, 10*time.Millisecond, logger)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	// A second Close must not block or panic.
	if err := w.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}
