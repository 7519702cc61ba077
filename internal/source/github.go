package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubTagResolver resolves a tag name to the commit it points at via
// the GitHub REST API, adapted from the teacher's internal/version.Resolver
// (same oauth2-wrapped github.Client construction, same paginated
// Repositories.ListTags call) but narrowed to this module's one use: a
// Tag-pinned git dependency can be fetched by its exact commit instead of
// a ref an upstream maintainer could later move.
type GitHubTagResolver struct {
	client *github.Client
}

// NewGitHubTagResolver builds a resolver. token may be empty, in which
// case requests are unauthenticated and subject to GitHub's lower
// anonymous rate limit.
func NewGitHubTagResolver(ctx context.Context, token string) *GitHubTagResolver {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	return &GitHubTagResolver{client: github.NewClient(httpClient)}
}

// ResolveTagCommit looks up tag among owner/repo's tags and returns the
// commit SHA it points at. Paginates up to 500 tags, matching the
// teacher's resolveFromTags cap.
func (r *GitHubTagResolver) ResolveTagCommit(ctx context.Context, owner, repo, tag string) (string, error) {
	opts := &github.ListOptions{PerPage: 100}
	for page := 1; page <= 5; page++ {
		opts.Page = page
		tags, _, err := r.client.Repositories.ListTags(ctx, owner, repo, opts)
		if err != nil {
			return "", fmt.Errorf("listing tags for %s/%s: %w", owner, repo, err)
		}
		if len(tags) == 0 {
			break
		}
		for _, t := range tags {
			if t.Name != nil && *t.Name == tag {
				if t.Commit == nil || t.Commit.SHA == nil {
					return "", fmt.Errorf("tag %q on %s/%s has no commit SHA", tag, owner, repo)
				}
				return *t.Commit.SHA, nil
			}
		}
	}
	return "", fmt.Errorf("tag %q not found on %s/%s", tag, owner, repo)
}
