package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cexll/prctx/internal/github"
	"github.com/cexll/prctx/internal/github/data"
	"github.com/cexll/prctx/internal/prompt"
)

// Command names.
const (
	NameOpen    = "pr-open"
	NameLink    = "pr-link"
	NameCurrent = "pr-current"
)

// ErrNoMatchingPullRequest means no open pull request has the local branch as
// its head.
var ErrNoMatchingPullRequest = errors.New("no open pull request found")

// Source is the remote data the commands need.
type Source interface {
	Fetch(ctx context.Context, owner, repo string, number int) (*data.FetchResult, error)
	FetchOpenPullRequests(ctx context.Context, owner, repo, branch string) ([]data.PullRequest, error)
}

// Locator resolves the repository and branch of a local checkout.
type Locator interface {
	Locate(dir string) (github.LocalRepo, error)
}

// Options tunes document assembly and identity resolution.
type Options struct {
	// Separator goes between fragments. Empty selects prompt.DefaultSeparator.
	Separator     string
	IncludeHeader bool
	// Hosts accepted in pull request URLs. Empty means github.com.
	Hosts []string
	// WorkDir is used by pr-current when no directory is given.
	WorkDir string
}

// Output is the result of one command: which pull request it resolved to
// and the assembled document.
type Output struct {
	Identity github.Identity `json:"identity"`
	Title    string          `json:"title"`
	Document prompt.Document `json:"document"`
}

// Service implements the pull request commands on top of a Source.
type Service struct {
	source  Source
	locator Locator
	opts    Options
	logger  *slog.Logger
}

// NewService wires the commands. locator may be nil when pr-current and
// checkout-based completion are not needed.
func NewService(source Source, locator Locator, opts Options, logger *slog.Logger) *Service {
	if opts.Separator == "" {
		opts.Separator = prompt.DefaultSeparator
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{source: source, locator: locator, opts: opts, logger: logger}
}

// Registry returns the dispatch table for the three commands.
func (s *Service) Registry() *Registry {
	r := NewRegistry()
	r.Register(Command{
		Name:        NameOpen,
		Description: "Insert a pull request and its review comments by owner, repository and number",
		ArgHint:     "owner,repo,number",
		ArgRequired: true,
		Run:         s.OpenArgs,
		Complete:    s.CompleteOpen,
	})
	r.Register(Command{
		Name:        NameLink,
		Description: "Insert a pull request and its review comments from its URL",
		ArgHint:     "https://github.com/owner/repo/pull/number",
		ArgRequired: true,
		Run:         s.OpenURL,
	})
	r.Register(Command{
		Name:        NameCurrent,
		Description: "Insert the open pull request for the current branch of a local checkout",
		ArgHint:     "[directory]",
		Run:         s.Current,
	})
	return r
}

// Open fetches the pull request and its comments and assembles the document.
func (s *Service) Open(ctx context.Context, id github.Identity) (*Output, error) {
	res, err := s.source.Fetch(ctx, id.Owner, id.Repo, id.Number)
	if err != nil {
		return nil, err
	}

	doc := prompt.Assemble(res.Fragments(s.opts.IncludeHeader), s.opts.Separator)
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", id, err)
	}
	s.logger.Debug("assembled pull request document",
		"pr", id.String(), "comments", len(res.Comments), "sections", len(doc.Sections), "bytes", len(doc.Text))

	return &Output{Identity: id, Title: res.PullRequest.Title, Document: doc}, nil
}

// OpenArgs handles pr-open: "owner,repo,number".
func (s *Service) OpenArgs(ctx context.Context, arg string) (*Output, error) {
	id, err := github.ParseArgs(arg)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, id)
}

// OpenURL handles pr-link.
func (s *Service) OpenURL(ctx context.Context, arg string) (*Output, error) {
	id, err := github.ParsePullRequestURL(arg, s.opts.Hosts...)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, id)
}

// Current handles pr-current. arg is the checkout directory; empty uses the
// configured working directory.
func (s *Service) Current(ctx context.Context, arg string) (*Output, error) {
	id, err := s.ResolveCurrent(ctx, arg)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, id)
}

// ResolveCurrent finds the first open pull request whose head is the branch
// checked out in dir.
func (s *Service) ResolveCurrent(ctx context.Context, dir string) (github.Identity, error) {
	if s.locator == nil {
		return github.Identity{}, errors.New("pr-current: no repository locator configured")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = s.opts.WorkDir
	}

	local, err := s.locator.Locate(dir)
	if err != nil {
		return github.Identity{}, err
	}
	prs, err := s.source.FetchOpenPullRequests(ctx, local.Owner, local.Repo, local.Branch)
	if err != nil {
		return github.Identity{}, err
	}
	if len(prs) == 0 {
		return github.Identity{}, fmt.Errorf("%w for branch %s in %s/%s", ErrNoMatchingPullRequest, local.Branch, local.Owner, local.Repo)
	}
	if len(prs) > 1 {
		s.logger.Info("several open pull requests share the branch; using the first",
			"branch", local.Branch, "count", len(prs), "number", prs[0].Number)
	}
	return github.Identity{Owner: local.Owner, Repo: local.Repo, Number: prs[0].Number, Branch: local.Branch}, nil
}

// ListOpen returns the open pull requests of owner/repo, filtered by head
// branch when branch is not empty.
func (s *Service) ListOpen(ctx context.Context, owner, repo, branch string) ([]data.PullRequest, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return nil, fmt.Errorf("%w: owner and repo must not be empty", github.ErrInvalidIdentity)
	}
	return s.source.FetchOpenPullRequests(ctx, owner, repo, branch)
}

// CompleteOpen lists open pull requests as pr-open arguments. The repository
// comes from the "owner,repo" prefix of arg, or from the local checkout when
// arg does not name one. A partial number, with or without the prefix,
// filters the suggestions.
func (s *Service) CompleteOpen(ctx context.Context, arg string) ([]Completion, error) {
	owner, repo, partial := splitPartialArgs(arg)
	if owner == "" || repo == "" {
		if s.locator == nil {
			return []Completion{}, nil
		}
		local, err := s.locator.Locate(s.opts.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("complete %s: %w", NameOpen, err)
		}
		owner, repo = local.Owner, local.Repo
	}

	prs, err := s.source.FetchOpenPullRequests(ctx, owner, repo, "")
	if err != nil {
		return nil, fmt.Errorf("complete %s: %w", NameOpen, err)
	}

	out := make([]Completion, 0, len(prs))
	for _, pr := range prs {
		number := fmt.Sprintf("%d", pr.Number)
		if partial != "" && !strings.HasPrefix(number, partial) {
			continue
		}
		id := github.Identity{Owner: owner, Repo: repo, Number: pr.Number}
		out = append(out, Completion{
			Label: fmt.Sprintf("#%d: %s", pr.Number, pr.Title),
			Value: id.Args(),
		})
	}
	return out, nil
}

// splitPartialArgs reads "owner,repo[,number]" or a bare partial number.
func splitPartialArgs(arg string) (owner, repo, number string) {
	parts := strings.Split(arg, ",")
	if len(parts) < 2 {
		if n := strings.TrimSpace(parts[0]); isDigits(n) {
			return "", "", n
		}
		return "", "", ""
	}
	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if len(parts) > 2 {
		number = strings.TrimSpace(parts[2])
	}
	return owner, repo, number
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
