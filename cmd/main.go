package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/cexll/prctx/internal/app"
	"github.com/cexll/prctx/internal/config"
	"github.com/cexll/prctx/internal/logging"
	"github.com/cexll/prctx/internal/web"
)

var (
	loadConfig         = config.Load
	newService         = app.NewService
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Config file, .env in the working directory, then the process environment
	cfg, err := loadConfig(config.Options{Dir: "."})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	logger.Info("starting prctx server", "port", cfg.Port, "api_url", apiURL(cfg), "include_header", cfg.IncludeHeader)

	svc, err := newService(cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	r := mux.NewRouter()
	web.NewHandler(svc, logger).RegisterRoutes(r)

	// Root endpoint with info
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"service":"prctx","status":"running"}`)
	}).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("server listening", "addr", addr,
		"health", fmt.Sprintf("http://localhost%s/health", addr),
		"commands", fmt.Sprintf("http://localhost%s/commands", addr))

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

func apiURL(cfg *config.Config) string {
	if cfg.APIURL == "" {
		return "https://api.github.com/"
	}
	return cfg.APIURL
}
