package github

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// DefaultHost is the only host pull request URLs and remotes are accepted
// from unless callers pass others.
const DefaultHost = "github.com"

// ErrInvalidIdentity is wrapped by every identity parsing failure.
var ErrInvalidIdentity = errors.New("invalid pull request identity")

// Identity names one pull request. Branch is set only when the identity was
// derived from a local checkout.
type Identity struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	Branch string `json:"branch,omitempty"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s#%d", id.Owner, id.Repo, id.Number)
}

// Args renders the identity in the owner,repo,number form ParseArgs accepts.
func (id Identity) Args() string {
	return fmt.Sprintf("%s,%s,%d", id.Owner, id.Repo, id.Number)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidIdentity, fmt.Sprintf(format, args...))
}

// ParseArgs parses "owner,repo,number".
func ParseArgs(raw string) (Identity, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Identity{}, invalid("expected owner,repo,number, got %q", raw)
	}
	owner := strings.TrimSpace(parts[0])
	repo := strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return Identity{}, invalid("owner and repo must not be empty in %q", raw)
	}
	number, err := parseNumber(parts[2])
	if err != nil {
		return Identity{}, err
	}
	return Identity{Owner: owner, Repo: repo, Number: number}, nil
}

// ParsePullRequestURL extracts the identity from a pull request URL such as
// https://github.com/owner/repo/pull/42. The two path segments after the
// host are the owner and repository; the last segment is the number.
func ParsePullRequestURL(raw string, hosts ...string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identity{}, invalid("empty pull request URL")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Identity{}, invalid("parse %q: %v", raw, err)
	}
	if !hostAllowed(u.Hostname(), hosts) {
		return Identity{}, invalid("%q is not a GitHub URL", raw)
	}

	segments := splitPath(u.Path)
	if len(segments) < 3 {
		return Identity{}, invalid("%q does not name a pull request", raw)
	}
	number, err := parseNumber(segments[len(segments)-1])
	if err != nil {
		return Identity{}, err
	}
	return Identity{Owner: segments[0], Repo: segments[1], Number: number}, nil
}

var scpRemoteRe = regexp.MustCompile(`^(?:[^@/\s]+@)?([^:/\s]+):/?([^/\s]+)/([^/\s]+?)/?$`)

// ParseRemoteURL extracts owner and repository from a git remote in any of
// the forms git@github.com:owner/repo.git, ssh://git@github.com/owner/repo,
// https://github.com/owner/repo.git.
func ParseRemoteURL(raw string, hosts ...string) (owner, repo string, err error) {
	trimmed := strings.TrimSpace(raw)

	var host string
	var segments []string
	if strings.Contains(trimmed, "://") {
		u, perr := url.Parse(trimmed)
		if perr != nil {
			return "", "", invalid("parse remote %q: %v", raw, perr)
		}
		host = u.Hostname()
		segments = splitPath(u.Path)
	} else if m := scpRemoteRe.FindStringSubmatch(trimmed); m != nil {
		host = m[1]
		segments = []string{m[2], m[3]}
	} else {
		return "", "", invalid("cannot parse owner/repo from remote URL %q", raw)
	}

	if !hostAllowed(host, hosts) {
		return "", "", invalid("remote %q is not hosted on GitHub", raw)
	}
	if len(segments) != 2 {
		return "", "", invalid("cannot parse owner/repo from remote URL %q", raw)
	}
	owner = segments[0]
	repo = strings.TrimSuffix(segments[1], ".git")
	if owner == "" || repo == "" {
		return "", "", invalid("cannot parse owner/repo from remote URL %q", raw)
	}
	return owner, repo, nil
}

// parseNumber accepts 1..2^32-1.
func parseNumber(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, invalid("pull request number must be a positive 32-bit integer, got %q", s)
	}
	return int(n), nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hostAllowed(host string, hosts []string) bool {
	if len(hosts) == 0 {
		hosts = []string{DefaultHost}
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, h := range hosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}
