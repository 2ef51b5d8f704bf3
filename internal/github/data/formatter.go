package data

import (
	"fmt"
	"strings"

	"github.com/cexll/prctx/internal/prompt"
)

// NoDescription replaces an absent pull request body.
const NoDescription = "No description provided."

// PullRequestLabel is the section label of the description fragment.
func PullRequestLabel(pr PullRequest) string {
	return fmt.Sprintf("PR #%d: %s", pr.Number, pr.Title)
}

// CommentLabel names a comment section after its author, marking replies.
func CommentLabel(c Comment) string {
	if c.IsReply() {
		return "↪ Reply to comment by @" + c.Author.Login
	}
	return "Comment by @" + c.Author.Login
}

// FormatComment renders the diff excerpt a comment is anchored to, followed
// by the comment body.
func FormatComment(c Comment) string {
	var b strings.Builder
	b.Grow(len(c.DiffExcerpt) + len(c.Body) + 16)
	b.WriteString("```diff\n")
	b.WriteString(c.DiffExcerpt)
	b.WriteString("\n```\n\n")
	b.WriteString(c.Body)
	return b.String()
}

// BuildHeader renders a metadata fragment summarising the pull request.
func BuildHeader(pr PullRequest) prompt.Fragment {
	content := fmt.Sprintf("PR #%d: %s\nState: %s\nAuthor: @%s\nURL: %s",
		pr.Number, pr.Title, pr.State, pr.Author.Login, pr.URL)
	return prompt.Fragment{Label: fmt.Sprintf("PR #%d metadata", pr.Number), Content: content}
}

// BuildFragments turns a pull request and its comments into document
// fragments: the description first, then one fragment per comment in the
// order given.
func BuildFragments(pr PullRequest, comments []Comment) []prompt.Fragment {
	body := NoDescription
	if pr.Body != nil {
		body = *pr.Body
	}

	fragments := make([]prompt.Fragment, 0, len(comments)+1)
	fragments = append(fragments, prompt.Fragment{Label: PullRequestLabel(pr), Content: body})
	for _, c := range comments {
		fragments = append(fragments, prompt.Fragment{Label: CommentLabel(c), Content: FormatComment(c)})
	}
	return fragments
}

// Fragments builds the fragments for a fetch result, optionally preceded by
// the metadata header.
func (r *FetchResult) Fragments(includeHeader bool) []prompt.Fragment {
	fragments := BuildFragments(r.PullRequest, r.Comments)
	if !includeHeader {
		return fragments
	}
	return append([]prompt.Fragment{BuildHeader(r.PullRequest)}, fragments...)
}
