package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultUserAgent identifies requests made by this tool.
	DefaultUserAgent = "prctx"
	// DefaultPerPage is the page size used for list endpoints. Only the first
	// page is ever read.
	DefaultPerPage = 100
	defaultTimeout = 30 * time.Second
)

// Options configures NewClient.
type Options struct {
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL   string
	UserAgent string
	PerPage   int
	Timeout   time.Duration
	// TokenSource supplies the bearer credential. Nil sends no
	// Authorization header.
	TokenSource oauth2.TokenSource
	// HTTPClient is used as the base transport when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a REST client for the three pull request endpoints the document
// is built from. Each call makes exactly one request; there are no retries.
type Client struct {
	gh      *gh.Client
	perPage int
	logger  *slog.Logger
}

// NewClient builds a go-github client from opts and wraps it.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if opts.TokenSource != nil {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := *httpClient
		authed.Transport = &oauth2.Transport{Source: opts.TokenSource, Base: base}
		httpClient = &authed
	}

	client := gh.NewClient(httpClient)
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub API URL %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = base
	}
	client.UserAgent = DefaultUserAgent
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	return New(client, opts.PerPage, opts.Logger), nil
}

// New wraps an existing go-github client.
func New(client *gh.Client, perPage int, logger *slog.Logger) *Client {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{gh: client, perPage: perPage, logger: logger}
}

// FetchPullRequest retrieves a single pull request.
func (c *Client) FetchPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	op := fmt.Sprintf("fetch pull request %s/%s#%d", owner, repo, number)
	apiPR, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, classify(op, resp, err)
	}
	pr, err := pullRequestFromAPI(op, apiPR)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// FetchComments retrieves the review comments of a pull request in API order.
// A single malformed comment fails the whole call.
func (c *Client) FetchComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	op := fmt.Sprintf("fetch comments for %s/%s#%d", owner, repo, number)
	u := fmt.Sprintf("repos/%s/%s/pulls/%d/comments?per_page=%d", url.PathEscape(owner), url.PathEscape(repo), number, c.perPage)
	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	var apiComments []*gh.PullRequestComment
	resp, err := c.gh.Do(ctx, req, &apiComments)
	if err != nil {
		return nil, classify(op, resp, err)
	}

	comments := make([]Comment, 0, len(apiComments))
	for i, ac := range apiComments {
		cm, err := commentFromAPI(op, ac)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		comments = append(comments, cm)
	}
	return comments, nil
}

// FetchOpenPullRequests lists open pull requests of a repository. Entries
// that fail to decode are logged and skipped. When branch is non-empty only
// pull requests whose head ref equals branch are returned.
func (c *Client) FetchOpenPullRequests(ctx context.Context, owner, repo, branch string) ([]PullRequest, error) {
	op := fmt.Sprintf("list open pull requests for %s/%s", owner, repo)
	u := fmt.Sprintf("repos/%s/%s/pulls?state=open&per_page=%d", url.PathEscape(owner), url.PathEscape(repo), c.perPage)
	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	var entries []json.RawMessage
	resp, err := c.gh.Do(ctx, req, &entries)
	if err != nil {
		return nil, classify(op, resp, err)
	}

	prs := make([]PullRequest, 0, len(entries))
	for i, raw := range entries {
		pr, err := decodePullRequest(op, raw)
		if err != nil {
			c.logger.Warn("skipping unparseable pull request",
				"owner", owner, "repo", repo, "index", i, "error", err)
			continue
		}
		if branch != "" && pr.HeadRef != branch {
			continue
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

// classify turns a go-github error into one of the package's error types.
func classify(op string, resp *gh.Response, err error) error {
	if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Op: op, Status: resp.StatusCode, Message: apiMessage(err)}
	}
	if isDecodeError(err) {
		return &MalformedResponseError{Op: op, Err: err}
	}
	return &TransportError{Op: op, Err: err}
}

func apiMessage(err error) string {
	var (
		errResp   *gh.ErrorResponse
		rateErr   *gh.RateLimitError
		abuseErr  *gh.AbuseRateLimitError
		twoFactor *gh.TwoFactorAuthError
		msg       string
	)
	switch {
	case errors.As(err, &errResp):
		msg = errResp.Message
	case errors.As(err, &rateErr):
		msg = rateErr.Message
	case errors.As(err, &abuseErr):
		msg = abuseErr.Message
	case errors.As(err, &twoFactor):
		msg = twoFactor.Message
	}
	if strings.TrimSpace(msg) == "" {
		return unknownAPIError
	}
	return msg
}
