package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cexll/prctx/internal/app"
	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/config"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_APP_ID", "")
	t.Setenv("PRCTX_LOG_LEVEL", "error")
	t.Chdir(t.TempDir())
}

func TestRun_StartsServerWithValidConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("PORT", "4321")

	var servedAddr string
	var servedHandler http.Handler

	serve := func(addr string, handler http.Handler) error {
		servedAddr = addr
		servedHandler = handler
		return nil
	}

	if err := run(context.Background(), serve); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	if servedAddr != ":4321" {
		t.Fatalf("serve addr = %q, want :4321", servedAddr)
	}
	if servedHandler == nil {
		t.Fatalf("serve handler is nil")
	}

	// Smoke test a couple of routes to ensure router wiring is intact.
	rec := httptest.NewRecorder()
	servedHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("/health missing X-Request-ID")
	}

	rec = httptest.NewRecorder()
	servedHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/ status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"service":"prctx"`) {
		t.Fatalf("root body = %q, want service payload", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	servedHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/commands", nil))
	if !strings.Contains(rec.Body.String(), command.NameLink) {
		t.Fatalf("/commands body = %q, want %s", rec.Body.String(), command.NameLink)
	}
}

func TestRun_ReturnsErrorWhenServeFails(t *testing.T) {
	setTestEnv(t)

	expected := errors.New("listen failed")
	err := run(context.Background(), func(string, http.Handler) error {
		return expected
	})

	if err == nil {
		t.Fatalf("run() error = nil, want %v", expected)
	}
	if !errors.Is(err, expected) {
		t.Fatalf("run() error = %v, want to wrap %v", err, expected)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("PORT", "not-a-port")

	called := false
	err := run(context.Background(), func(string, http.Handler) error {
		called = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "failed to load configuration") {
		t.Fatalf("run() error = %v, want configuration error", err)
	}
	if called {
		t.Fatalf("serve should not be called when configuration fails")
	}
}

func TestRun_ServiceError(t *testing.T) {
	setTestEnv(t)

	prev := newService
	defer func() { newService = prev }()
	newService = func(*config.Config, *slog.Logger, app.Options) (*command.Service, error) {
		return nil, errors.New("inject failure")
	}

	err := run(context.Background(), func(string, http.Handler) error {
		t.Fatalf("serve should not be called on service failure")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "failed to initialize service") {
		t.Fatalf("run() error = %v, want service failure", err)
	}
}

func TestRun_ReadsDotEnv(t *testing.T) {
	setTestEnv(t)
	t.Setenv("PORT", "")

	prev := loadConfig
	defer func() { loadConfig = prev }()
	var gotOpts config.Options
	loadConfig = func(opts config.Options) (*config.Config, error) {
		gotOpts = opts
		return prev(config.Options{Dir: opts.Dir, Environ: map[string]string{"PORT": "5555"}})
	}

	var servedAddr string
	if err := run(context.Background(), func(addr string, _ http.Handler) error {
		servedAddr = addr
		return nil
	}); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
	if gotOpts.Dir != "." {
		t.Fatalf("config dir = %q, want .", gotOpts.Dir)
	}
	if servedAddr != ":5555" {
		t.Fatalf("serve addr = %q, want :5555", servedAddr)
	}
}
