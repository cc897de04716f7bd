// Package search implements the remote code-forge search endpoint spec
// §1 names as an external collaborator: the core calls one operation,
// "search QUERY [-n N]" (spec §6), and gets back a ranked list of
// candidate repositories.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/stefan-hacks/pygr/internal/errmsg"
)

// Result is one candidate repository for an "install OWNER/REPO" flow.
type Result struct {
	FullName    string
	Description string
	Stars       int
}

// RateLimitError reports the GitHub search API's rate limit being
// exhausted, distinguishing authenticated from unauthenticated callers
// so the CLI can suggest setting GITHUB_TOKEN (spec §6's environment
// variable).
type RateLimitError struct {
	Authenticated bool
	Err           error
}

func (e *RateLimitError) Error() string {
	if e.Authenticated {
		return fmt.Sprintf("search: GitHub API rate limit exceeded: %v", e.Err)
	}
	return fmt.Sprintf("search: GitHub API rate limit exceeded (set GITHUB_TOKEN to raise it): %v", e.Err)
}
func (e *RateLimitError) Unwrap() error         { return e.Err }
func (e *RateLimitError) ErrorKind() errmsg.Kind { return errmsg.KindCacheError }

// Client queries GitHub's repository search endpoint.
type Client struct {
	gh            *github.Client
	authenticated bool
}

// New returns a Client. If GITHUB_TOKEN is set in the environment,
// requests are authenticated and get a higher rate limit (spec §6).
func New() *Client {
	var httpClient *http.Client
	authenticated := false
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		authenticated = true
	}

	return &Client{gh: github.NewClient(httpClient), authenticated: authenticated}
}

// Search runs query against GitHub's repository search, returning up
// to n results ranked by the API's default relevance order (spec §6's
// "search QUERY [-n N]").
func (c *Client) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if n <= 0 {
		n = 10
	}
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: n}}

	res, _, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		var rateLimitErr *github.RateLimitError
		if errors.As(err, &rateLimitErr) {
			return nil, &RateLimitError{Authenticated: c.authenticated, Err: err}
		}
		return nil, fmt.Errorf("search: query %q: %w", query, err)
	}

	results := make([]Result, 0, len(res.Repositories))
	for i, repo := range res.Repositories {
		if i >= n {
			break
		}
		r := Result{}
		if repo.FullName != nil {
			r.FullName = *repo.FullName
		}
		if repo.Description != nil {
			r.Description = *repo.Description
		}
		if repo.StargazersCount != nil {
			r.Stars = *repo.StargazersCount
		}
		results = append(results, r)
	}
	return results, nil
}
