// Package main is the entry point for the prctx CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/cexll/prctx/internal/app"
	"github.com/cexll/prctx/internal/cli"
	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/config"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	root := cli.NewRootCommand(func(cfg *config.Config, logger *slog.Logger) (*command.Service, error) {
		return app.NewService(cfg, logger, app.Options{})
	}, version)
	os.Exit(cli.Execute(root))
}
