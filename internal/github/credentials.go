package github

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// Environment variable names consulted for credentials.
const (
	EnvToken          = "GITHUB_TOKEN"
	EnvAppID          = "GITHUB_APP_ID"
	EnvPrivateKey     = "GITHUB_PRIVATE_KEY"
	EnvPrivateKeyPath = "GITHUB_PRIVATE_KEY_PATH"
	EnvInstallationID = "GITHUB_INSTALLATION_ID"
	// EnvRepository is "owner/repo", as set by GitHub Actions. It names the
	// repository whose App installation is used when no installation ID is set.
	EnvRepository = "GITHUB_REPOSITORY"
)

// Lookup reads one variable from some environment. Hosts pass the merged
// config snapshot so .env files and the process environment both apply.
type Lookup func(name string) (string, bool)

// MapLookup reads from a fixed snapshot.
func MapLookup(vars map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// CredentialOptions carries what an App token source needs beyond the
// environment.
type CredentialOptions struct {
	BaseURL string
	// Owner and Repo locate the App installation when GITHUB_INSTALLATION_ID
	// is unset. Empty falls back to GITHUB_REPOSITORY.
	Owner      string
	Repo       string
	HTTPClient *http.Client
}

// TokenSource resolves a credential from lookup. GITHUB_TOKEN wins; otherwise
// GITHUB_APP_ID plus a private key selects GitHub App authentication, which
// also needs an installation ID or a repository to find the installation.
// With neither it returns nil and requests go out unauthenticated.
func TokenSource(lookup Lookup, opts CredentialOptions) (oauth2.TokenSource, error) {
	if lookup == nil {
		return nil, nil
	}
	if token := value(lookup, EnvToken); token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), nil
	}

	appID := value(lookup, EnvAppID)
	if appID == "" {
		return nil, nil
	}

	key := NormalizePrivateKey(value(lookup, EnvPrivateKey))
	if key == "" {
		if path := value(lookup, EnvPrivateKeyPath); path != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", EnvPrivateKeyPath, err)
			}
			key = NormalizePrivateKey(string(raw))
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%s is set but neither %s nor %s is", EnvAppID, EnvPrivateKey, EnvPrivateKeyPath)
	}

	app := &AppAuth{
		AppID:      appID,
		PrivateKey: key,
		Owner:      opts.Owner,
		Repo:       opts.Repo,
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
	}
	if raw := value(lookup, EnvInstallationID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvInstallationID, raw, err)
		}
		app.InstallationID = id
	}
	if app.InstallationID == 0 && (app.Owner == "" || app.Repo == "") {
		slug := value(lookup, EnvRepository)
		if slug == "" {
			return nil, fmt.Errorf("%s is set but neither %s nor %s is", EnvAppID, EnvInstallationID, EnvRepository)
		}
		owner, repo, ok := strings.Cut(slug, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return nil, fmt.Errorf("invalid %s %q: want owner/repo", EnvRepository, slug)
		}
		app.Owner, app.Repo = owner, repo
	}
	if _, err := app.GenerateJWT(); err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(nil, app), nil
}

// NormalizePrivateKey strips surrounding quotes and expands escaped newlines
// so keys pasted into .env files parse as PEM.
func NormalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "\""), "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "'"), "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}
	return trimmed
}

func value(lookup Lookup, name string) string {
	v, ok := lookup(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
