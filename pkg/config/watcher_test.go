package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimalConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	old := GetConfig()
	defer SetConfig(old)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond
	defer w.Stop()

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx, func(cfg *Config) {
			if cfg.Pool.LeaseTTL == 42*time.Minute {
				reloads.Add(1)
			}
		})
	}()

	// Give the watch loop a moment to register.
	time.Sleep(50 * time.Millisecond)

	updated := minimalConfig + "\npool:\n  lease_ttl: 42m\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("watcher never delivered the reloaded configuration")
	}

	cancel()
	<-done
}

func TestWatcherKeepsOldConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimalConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	old := GetConfig()
	defer SetConfig(old)

	good, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	SetConfig(good)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx, nil) }()
	time.Sleep(50 * time.Millisecond)

	// Break the file; the singleton must keep the previous value.
	if err := os.WriteFile(path, []byte("upstream: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := GetConfig(); got != good {
		t.Error("broken reload replaced the configuration")
	}
}
