// Package app wires configuration, credentials and the GitHub client into
// the command service shared by every host.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/config"
	"github.com/cexll/prctx/internal/github"
	"github.com/cexll/prctx/internal/github/data"
	"github.com/cexll/prctx/internal/logging"
)

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	// HTTPClient replaces the client built from the config timeout.
	HTTPClient *http.Client
	// Locator replaces the go-git locator.
	Locator command.Locator
	// WorkDir is the default checkout for pr-current.
	WorkDir string
}

// NewService builds the command service described by cfg.
func NewService(cfg *config.Config, logger *slog.Logger, opts Options) (*command.Service, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	ts, err := github.TokenSource(github.MapLookup(cfg.Vars()), github.CredentialOptions{
		BaseURL:    cfg.APIURL,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve GitHub credentials: %w", err)
	}
	if ts == nil {
		logger.Debug("no GitHub credentials configured; requests are unauthenticated")
	}

	client, err := data.NewClient(data.Options{
		BaseURL:     cfg.APIURL,
		UserAgent:   cfg.UserAgent,
		PerPage:     cfg.PerPage,
		Timeout:     cfg.HTTPTimeout.Std(),
		TokenSource: ts,
		HTTPClient:  opts.HTTPClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	locator := opts.Locator
	if locator == nil {
		locator = github.GitLocator{Hosts: cfg.Hosts()}
	}

	return command.NewService(data.NewFetcher(client), locator, command.Options{
		Separator:     cfg.Separator,
		IncludeHeader: cfg.IncludeHeader,
		Hosts:         cfg.Hosts(),
		WorkDir:       opts.WorkDir,
	}, logger), nil
}
