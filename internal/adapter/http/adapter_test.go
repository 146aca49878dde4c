package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authinfo/internal/middleware"
)

type stubHealth struct{}

func (stubHealth) Health(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "health") }
func (stubHealth) Ready(w http.ResponseWriter, r *http.Request)  { _, _ = io.WriteString(w, "ready") }
func (stubHealth) Live(w http.ResponseWriter, r *http.Request)   { _, _ = io.WriteString(w, "live") }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter() *Adapter {
	return New(Config{Host: "127.0.0.1"}, testLogger()).
		Handle("/api/auth-info", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "info")
		})).
		WithHealthHandler(stubHealth{}, HealthPaths{Health: "/health", Ready: "/ready", Live: "/live"}).
		WithMetricsHandler("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "metrics")
		}))
}

func TestAdapterRouting(t *testing.T) {
	handler := newTestAdapter().Handler()

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/api/auth-info", http.StatusOK, "info"},
		{"/health", http.StatusOK, "health"},
		{"/ready", http.StatusOK, "ready"},
		{"/live", http.StatusOK, "live"},
		{"/metrics", http.StatusOK, "metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAdapterNotFound(t *testing.T) {
	handler := newTestAdapter().Handler()

	for _, path := range []string{"/", "/api/auth-info/x", "/api"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["type"] != "not_found" {
			t.Errorf("%s: unexpected body %v (%v)", path, body, err)
		}
	}
}

func TestAdapterMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := newTestAdapter().WithMiddleware(mark("outer")).WithMiddleware(mark("inner")).Handler()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	if fmt.Sprint(order) != "[outer inner]" {
		t.Errorf("order = %v", order)
	}
}

func TestAdapterStartStop(t *testing.T) {
	adapter := newTestAdapter()
	if adapter.Addr() != nil {
		t.Error("Addr should be nil before Start")
	}

	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://%s/api/auth-info", adapter.Addr())
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "info" {
		t.Errorf("body = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adapter.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, err := http.Get(url); err == nil {
		t.Error("expected request to fail after Stop")
	}
}

func TestAdapterBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	adapter := New(Config{Host: "127.0.0.1", Port: port}, testLogger())
	if err := adapter.Start(context.Background()); err == nil {
		_ = adapter.Stop(context.Background())
		t.Fatal("expected bind error")
	}
}

func TestAdapterStopBeforeStart(t *testing.T) {
	if err := newTestAdapter().Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
}
