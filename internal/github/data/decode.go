package data

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// field pairs a JSON field name with whether the response carried it.
type field struct {
	name    string
	present bool
}

func firstMissing(fields ...field) string {
	for _, f := range fields {
		if !f.present {
			return f.name
		}
	}
	return ""
}

func userFromAPI(op, prefix string, u *gh.User) (User, error) {
	if u == nil {
		return User{}, &MalformedResponseError{Op: op, Field: prefix}
	}
	if name := firstMissing(
		field{prefix + ".login", u.Login != nil},
		field{prefix + ".id", u.ID != nil},
		field{prefix + ".avatar_url", u.AvatarURL != nil},
	); name != "" {
		return User{}, &MalformedResponseError{Op: op, Field: name}
	}
	return User{Login: u.GetLogin(), ID: u.GetID(), AvatarURL: u.GetAvatarURL()}, nil
}

// pullRequestFromAPI validates the required fields of a decoded pull request.
// The body and head ref are optional.
func pullRequestFromAPI(op string, pr *gh.PullRequest) (PullRequest, error) {
	if pr == nil {
		return PullRequest{}, &MalformedResponseError{Op: op, Err: errors.New("empty body")}
	}
	if name := firstMissing(
		field{"number", pr.Number != nil},
		field{"title", pr.Title != nil},
		field{"state", pr.State != nil},
		field{"html_url", pr.HTMLURL != nil},
		field{"created_at", pr.CreatedAt != nil},
		field{"updated_at", pr.UpdatedAt != nil},
	); name != "" {
		return PullRequest{}, &MalformedResponseError{Op: op, Field: name}
	}
	author, err := userFromAPI(op, "user", pr.User)
	if err != nil {
		return PullRequest{}, err
	}

	out := PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		URL:       pr.GetHTMLURL(),
		Author:    author,
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
		HeadRef:   pr.GetHead().GetRef(),
	}
	if pr.Body != nil {
		body := *pr.Body
		out.Body = &body
	}
	return out, nil
}

// commentFromAPI validates a review comment. in_reply_to_id is optional and
// defaults to zero.
func commentFromAPI(op string, c *gh.PullRequestComment) (Comment, error) {
	if c == nil {
		return Comment{}, &MalformedResponseError{Op: op, Err: errors.New("null comment")}
	}
	if name := firstMissing(
		field{"id", c.ID != nil},
		field{"body", c.Body != nil},
		field{"created_at", c.CreatedAt != nil},
		field{"updated_at", c.UpdatedAt != nil},
		field{"html_url", c.HTMLURL != nil},
		field{"path", c.Path != nil},
		field{"diff_hunk", c.DiffHunk != nil},
	); name != "" {
		return Comment{}, &MalformedResponseError{Op: op, Field: name}
	}
	author, err := userFromAPI(op, "user", c.User)
	if err != nil {
		return Comment{}, err
	}
	return Comment{
		ID:          c.GetID(),
		Body:        c.GetBody(),
		Author:      author,
		CreatedAt:   c.GetCreatedAt().Time,
		UpdatedAt:   c.GetUpdatedAt().Time,
		URL:         c.GetHTMLURL(),
		Path:        c.GetPath(),
		DiffExcerpt: c.GetDiffHunk(),
		InReplyToID: c.GetInReplyTo(),
	}, nil
}

// isDecodeError reports whether err came from parsing a response body rather
// than from the network.
func isDecodeError(err error) bool {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		timeErr   *time.ParseError
	)
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &timeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// decodePullRequest parses one raw list entry.
func decodePullRequest(op string, raw json.RawMessage) (PullRequest, error) {
	var pr *gh.PullRequest
	if err := json.Unmarshal(raw, &pr); err != nil {
		return PullRequest{}, &MalformedResponseError{Op: op, Err: err}
	}
	return pullRequestFromAPI(op, pr)
}
