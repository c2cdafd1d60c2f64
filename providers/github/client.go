// Package github fetches repository health signals (stars, forks, last
// commit) for packages that link a GitHub repository.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v59/github"
	"github.com/rs/zerolog/log"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// ErrNotFound means the linked repository does not exist or is private.
var ErrNotFound = errors.New("github repository not found")

// ErrRateLimited means the lookup was skipped because of API rate
// limiting. Callers must report it as a known-unknown, never as a
// zero-star repository.
var ErrRateLimited = errors.New("github rate limited")

// Stats is the repository snapshot consumed by the scoring engine.
type Stats struct {
	Stars      int       `json:"stars"`
	Forks      int       `json:"forks"`
	LastCommit time.Time `json:"last_commit"`
}

type StatsClient struct {
	restClient    *github.Client
	graphQLClient *githubv4.Client
}

// NewStatsClient builds a GitHub client. An empty token yields an
// unauthenticated client with the public rate limits.
func NewStatsClient(ctx context.Context, token string, baseURL string) (*StatsClient, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	restClient := github.NewClient(rateLimiter)
	if token != "" {
		restClient = restClient.WithAuthToken(token)
	}

	graphQLHTTPClient := &http.Client{Transport: &rateLimitTransport{}}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		graphQLHTTPClient = oauth2.NewClient(ctx, src)
		graphQLHTTPClient.Transport = &rateLimitTransport{base: graphQLHTTPClient.Transport}
	}

	var graphQLClient *githubv4.Client
	if baseURL == "" {
		graphQLClient = githubv4.NewClient(graphQLHTTPClient)
	} else {
		enterpriseURL := fmt.Sprintf("https://%s/", baseURL)
		restClient, err = restClient.WithEnterpriseURLs(enterpriseURL, enterpriseURL)
		if err != nil {
			return nil, err
		}
		graphQLClient = githubv4.NewEnterpriseClient(enterpriseURL+"api/graphql", graphQLHTTPClient)
	}

	return &StatsClient{
		restClient:    restClient,
		graphQLClient: graphQLClient,
	}, nil
}

// Stats resolves a repository URL to its star, fork and last-commit
// signals. The GraphQL path is preferred for the exact commit date, the
// REST path covers tokens without GraphQL scopes.
func (c *StatsClient) Stats(ctx context.Context, repoURL string) (Stats, error) {
	owner, name, err := ParseRepoURL(repoURL)
	if err != nil {
		return Stats{}, err
	}

	stats, err := c.statsGraphQL(ctx, owner, name)
	if err == nil {
		return stats, nil
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return Stats{}, fmt.Errorf("%w: %s", ErrRateLimited, rateLimitErr.RetryAfter)
	}
	if errors.Is(err, ErrNotFound) {
		return Stats{}, err
	}

	log.Debug().Err(err).Str("repo", owner+"/"+name).Msg("graphql stats failed, falling back to rest")
	return c.statsREST(ctx, owner, name)
}

func (c *StatsClient) statsGraphQL(ctx context.Context, owner, name string) (Stats, error) {
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}

	var query struct {
		Repository struct {
			StargazerCount   int
			ForkCount        int
			DefaultBranchRef struct {
				Target struct {
					Commit struct {
						CommittedDate time.Time
					} `graphql:"... on Commit"`
				}
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	err := c.graphQLClient.Query(ctx, &query, variables)
	if err != nil {
		if strings.Contains(err.Error(), "Could not resolve to a Repository") {
			return Stats{}, ErrNotFound
		}
		return Stats{}, err
	}

	return Stats{
		Stars:      query.Repository.StargazerCount,
		Forks:      query.Repository.ForkCount,
		LastCommit: query.Repository.DefaultBranchRef.Target.Commit.CommittedDate,
	}, nil
}

func (c *StatsClient) statsREST(ctx context.Context, owner, name string) (Stats, error) {
	repo, res, err := c.restClient.Repositories.Get(ctx, owner, name)
	if err != nil {
		var rateLimitErr *github.RateLimitError
		if errors.As(err, &rateLimitErr) {
			return Stats{}, fmt.Errorf("%w: resets at %s", ErrRateLimited, rateLimitErr.Rate.Reset)
		}
		if res != nil && res.StatusCode == http.StatusNotFound {
			return Stats{}, ErrNotFound
		}
		return Stats{}, fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}

	return Stats{
		Stars:      repo.GetStargazersCount(),
		Forks:      repo.GetForksCount(),
		LastCommit: repo.GetPushedAt().Time,
	}, nil
}

// ParseRepoURL extracts owner and repository name from the URL forms
// package registries carry (https, git, git+https, ssh, .git suffix).
func ParseRepoURL(repoURL string) (string, string, error) {
	cleaned := strings.TrimPrefix(repoURL, "git+")
	cleaned = strings.TrimSuffix(cleaned, ".git")
	cleaned = strings.Replace(cleaned, "git@github.com:", "https://github.com/", 1)

	u, err := url.Parse(cleaned)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository url %q: %w", repoURL, err)
	}
	if !strings.HasSuffix(u.Host, "github.com") {
		return "", "", fmt.Errorf("not a github repository url: %q", repoURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository path %q, expected <owner>/<name>", u.Path)
	}
	return parts[0], parts[1], nil
}
