package data

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fetcher gathers a pull request together with its review comments.
type Fetcher struct {
	client *Client
}

// NewFetcher constructs a Fetcher around the REST client.
func NewFetcher(c *Client) *Fetcher { return &Fetcher{client: c} }

// Fetch retrieves the pull request and its comments concurrently. It returns
// only once both requests have finished; the first failure cancels the other
// request and is returned.
func (f *Fetcher) Fetch(ctx context.Context, owner, repo string, number int) (*FetchResult, error) {
	var (
		pr       *PullRequest
		comments []Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pr, err = f.client.FetchPullRequest(gctx, owner, repo, number)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = f.client.FetchComments(gctx, owner, repo, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FetchResult{PullRequest: *pr, Comments: comments}, nil
}

// FetchOpenPullRequests delegates to the client.
func (f *Fetcher) FetchOpenPullRequests(ctx context.Context, owner, repo, branch string) ([]PullRequest, error) {
	return f.client.FetchOpenPullRequests(ctx, owner, repo, branch)
}
