package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const watcherInitialConfig = `
server:
  http:
    port: 8080
oauth2:
  client:
    accessTokenUri: https://dev-1.okta.com/oauth2/v1/token
    clientId: first
`

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWatcherReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "authinfo.yaml")
	if err := os.WriteFile(configPath, []byte(watcherInitialConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var lastConfig *Config
	changes := 0

	watcher, err := NewWatcher(configPath, &WatcherConfig{
		DebounceDuration: 50 * time.Millisecond,
		OnChange: func(cfg *Config) error {
			mu.Lock()
			defer mu.Unlock()
			changes++
			lastConfig = cfg
			return nil
		},
	}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	watcher.Start()
	defer watcher.Stop()

	updated := `
server:
  http:
    port: 8080
oauth2:
  client:
    accessTokenUri: https://kc.example.com/auth/realms/demo/protocol/openid-connect/token
    clientId: second
`
	if err := os.WriteFile(configPath, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastConfig != nil && lastConfig.OAuth2.Client.ClientID == "second"
	})

	mu.Lock()
	defer mu.Unlock()
	if changes < 1 {
		t.Errorf("expected at least one change, got %d", changes)
	}
}

func TestWatcherInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "authinfo.yaml")
	if err := os.WriteFile(configPath, []byte(watcherInitialConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 4)
	changed := make(chan struct{}, 4)

	watcher, err := NewWatcher(configPath, &WatcherConfig{
		DebounceDuration: 50 * time.Millisecond,
		OnChange: func(*Config) error {
			changed <- struct{}{}
			return nil
		},
		OnError: func(err error) { errCh <- err },
	}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	watcher.Start()
	defer watcher.Stop()

	if err := os.WriteFile(configPath, []byte("server:\n  http:\n    port: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-changed:
		t.Fatal("invalid config must not be applied")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "authinfo.yaml")
	if err := os.WriteFile(configPath, []byte(watcherInitialConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewWatcher(configPath, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	watcher.Start()

	if err := watcher.Stop(); err != nil {
		t.Errorf("first Stop() error = %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if watcher.Path() != configPath {
		t.Errorf("Path() = %q, want %q", watcher.Path(), configPath)
	}
}

func TestNewWatcherMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil, discardLogger())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
