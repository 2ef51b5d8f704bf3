package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// AppAuth authenticates as a GitHub App installation. It implements
// oauth2.TokenSource; wrap it in oauth2.ReuseTokenSource to cache the
// installation token until it expires.
type AppAuth struct {
	AppID      string
	PrivateKey string
	// InstallationID selects the installation directly. When zero the
	// installation of Owner/Repo is looked up.
	InstallationID int64
	Owner          string
	Repo           string

	// BaseURL overrides the API root (GitHub Enterprise, tests).
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// GenerateJWT creates the short-lived app JWT used to request installation
// tokens.
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(strings.TrimSpace(a.AppID), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	// GitHub rejects tokens issued in the future; backdate for clock drift.
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signedToken, nil
}

// Token exchanges the app JWT for an installation access token.
func (a *AppAuth) Token() (*oauth2.Token, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return nil, err
	}

	client, err := a.client(jwtToken)
	if err != nil {
		return nil, err
	}

	installationID := a.InstallationID
	if installationID == 0 {
		if a.Owner == "" || a.Repo == "" {
			return nil, errors.New("GitHub App installation: need an installation ID or an owner/repo to look it up")
		}
		inst, _, err := client.Apps.FindRepositoryInstallation(ctx, a.Owner, a.Repo)
		if err != nil {
			return nil, fmt.Errorf("failed to get installation for %s/%s: %w", a.Owner, a.Repo, err)
		}
		installationID = inst.GetID()
	}

	tok, _, err := client.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token for installation %d: %w", installationID, err)
	}
	if tok.GetToken() == "" {
		return nil, errors.New("GitHub App installation: empty access token")
	}
	return &oauth2.Token{
		AccessToken: tok.GetToken(),
		TokenType:   "Bearer",
		Expiry:      tok.GetExpiresAt().Time,
	}, nil
}

func (a *AppAuth) client(jwtToken string) (*gh.Client, error) {
	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	client := gh.NewClient(httpClient).WithAuthToken(jwtToken)
	if a.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(a.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub API URL %q: %w", a.BaseURL, err)
		}
		client.BaseURL = base
	}
	return client, nil
}
