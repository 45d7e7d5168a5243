// Package github is the harness's one external-collaborator integration: a
// minimal client the finalize command uses to look up a pull request and
// post a run's outcome back as a comment. It never pushes, merges, or
// mutates anything beyond the comment itself.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// PR is the slice of pull-request metadata the finalizer needs.
type PR struct {
	Owner  string
	Repo   string
	Number int
	Title  string
	Status string // active, completed, or abandoned
	URL    string
}

// Backend talks to one GitHub repository: REST (behind the rate-limit-aware
// transport) for lookups, GraphQL for the comment mutation.
type Backend struct {
	rest  *gh.Client
	gql   *githubv4.Client
	owner string
	repo  string
}

// NewBackend builds a Backend for owner/repo authenticated with token.
func NewBackend(owner, repo, token string) *Backend {
	rest := gh.NewClient(github_ratelimit.NewClient(nil)).WithAuthToken(token)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gql := githubv4.NewClient(oauth2.NewClient(context.Background(), src))
	return &Backend{rest: rest, gql: gql, owner: owner, repo: repo}
}

// GetPR looks up a pull request by bare number, "owner/repo#number", or a
// full GitHub PR URL.
func (b *Backend) GetPR(ctx context.Context, id string) (*PR, error) {
	owner, repo, number, err := b.parsePRIdentifier(id)
	if err != nil {
		return nil, err
	}

	pr, _, err := b.rest.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR %s/%s#%d: %w", owner, repo, number, err)
	}

	status := "active"
	if pr.GetMerged() {
		status = "completed"
	} else if pr.GetState() == "closed" {
		status = "abandoned"
	}

	return &PR{
		Owner:  owner,
		Repo:   repo,
		Number: number,
		Title:  pr.GetTitle(),
		Status: status,
		URL:    pr.GetHTMLURL(),
	}, nil
}

// PostComment posts body as a general comment on pr: one GraphQL query to
// resolve the PR's node id, then an addComment mutation against it.
func (b *Backend) PostComment(ctx context.Context, pr *PR, body string) error {
	var q struct {
		Repository struct {
			PullRequest struct {
				ID githubv4.ID
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]any{
		"owner":  githubv4.String(pr.Owner),
		"name":   githubv4.String(pr.Repo),
		"number": githubv4.Int(pr.Number),
	}
	if err := b.gql.Query(ctx, &q, vars); err != nil {
		return fmt.Errorf("resolving node id for %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
	}

	var m struct {
		AddComment struct {
			ClientMutationID githubv4.String
		} `graphql:"addComment(input: $input)"`
	}
	input := githubv4.AddCommentInput{
		SubjectID: q.Repository.PullRequest.ID,
		Body:      githubv4.String(body),
	}
	if err := b.gql.Mutate(ctx, &m, input, nil); err != nil {
		return fmt.Errorf("posting comment on %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
	}
	return nil
}

// parsePRIdentifier accepts a bare number (resolved against the backend's
// own owner/repo), "owner/repo#number", or a PR URL.
func (b *Backend) parsePRIdentifier(id string) (owner, repo string, number int, err error) {
	if n, convErr := strconv.Atoi(id); convErr == nil {
		return b.owner, b.repo, n, nil
	}

	if parts := strings.SplitN(id, "#", 2); len(parts) == 2 {
		if or := strings.SplitN(parts[0], "/", 2); len(or) == 2 {
			if n, convErr := strconv.Atoi(parts[1]); convErr == nil {
				return or[0], or[1], n, nil
			}
		}
	}

	if u, parseErr := url.Parse(id); parseErr == nil {
		// Pattern: {owner}/{repo}/pull/{number}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 4 && parts[2] == "pull" {
			if n, convErr := strconv.Atoi(parts[3]); convErr == nil {
				return parts[0], parts[1], n, nil
			}
		}
	}

	return "", "", 0, fmt.Errorf("could not parse PR identifier %q; use a number, owner/repo#number, or a PR URL", id)
}
