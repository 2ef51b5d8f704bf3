package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/prctx/internal/app"
	"github.com/cexll/prctx/internal/config"
	"github.com/cexll/prctx/internal/logging"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load(config.Options{Dir: "."})
	if err != nil {
		log.Fatalf("[MCP PR Server] failed to load configuration: %v", err)
	}

	// stdout belongs to the transport
	logger := logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	svc, err := app.NewService(cfg, logger, app.Options{})
	if err != nil {
		log.Fatalf("[MCP PR Server] failed to initialize service: %v", err)
	}

	server := newServer(svc.Registry(), logger, version)
	logger.Info("starting MCP PR server", "version", version, "tools", svc.Registry().Names())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatalf("[MCP PR Server] server error: %v", err)
	}
	logger.Info("MCP PR server stopped")
}
