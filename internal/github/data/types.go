package data

import "time"

// User is the author of a pull request or comment.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
}

// PullRequest is the subset of a GitHub pull request the document needs.
type PullRequest struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"html_url"`
	Body      *string   `json:"body,omitempty"`
	Author    User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// HeadRef is the source branch name. Only used to match open pull
	// requests against a local branch.
	HeadRef string `json:"head_ref,omitempty"`
}

// Comment is a review comment anchored to a diff hunk.
type Comment struct {
	ID          int64     `json:"id"`
	Body        string    `json:"body"`
	Author      User      `json:"user"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	URL         string    `json:"html_url"`
	Path        string    `json:"path"`
	DiffExcerpt string    `json:"diff_hunk"`
	// InReplyToID is zero for top-level comments.
	InReplyToID int64 `json:"in_reply_to_id,omitempty"`
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool { return c.InReplyToID != 0 }

// FetchResult is everything gathered for one pull request.
type FetchResult struct {
	PullRequest PullRequest
	Comments    []Comment
}
