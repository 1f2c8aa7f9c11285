// Package github loads issue and pull request discussions from GitHub as
// indexable memory chunks.
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/memctx/internal/ingest"
	"github.com/google/go-github/v77/github"
)

// DefaultMaxIssues caps how many issues a load fetches when Options.Max is unset
const DefaultMaxIssues = 200

// ErrInvalidRepository is returned for an unparseable repository reference
var ErrInvalidRepository = errors.New("invalid GitHub repository")

// Options controls which discussions are loaded
type Options struct {
	State    string // "open", "closed" or "all" (default)
	Max      int    // Maximum issues and pull requests; zero means DefaultMaxIssues
	Comments bool   // Include issue comments
}

// NewClient creates a GitHub API client. An empty token creates an
// unauthenticated client subject to the public rate limit.
func NewClient(token string) *github.Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

// ParseRepository extracts owner and name from "owner/repo", an HTTPS URL or
// an SSH remote.
func ParseRepository(ref string) (owner, repo string, err error) {
	s := strings.TrimSpace(ref)
	s = strings.TrimSuffix(strings.TrimRight(s, "/"), ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "git@github.com:", "github.com/"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, ref)
	}
	return parts[0], parts[1], nil
}

// LoadIssues fetches the issues and pull requests of owner/repo, newest
// first, and chunks each discussion. Chunk origins are the HTML URLs.
func LoadIssues(ctx context.Context, client *github.Client, owner, repo string, opts Options) ([]ingest.Chunk, error) {
	state := opts.State
	if state == "" {
		state = "all"
	}
	limit := opts.Max
	if limit <= 0 {
		limit = DefaultMaxIssues
	}

	listOpts := &github.IssueListByRepoOptions{
		State:       state,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: min(limit, 100)},
	}

	var chunks []ingest.Chunk
	loaded := 0
	for loaded < limit {
		issues, resp, err := client.Issues.ListByRepo(ctx, owner, repo, listOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}

		for _, issue := range issues {
			if loaded == limit {
				break
			}
			var comments []*github.IssueComment
			if opts.Comments && issue.GetComments() > 0 {
				comments, err = listComments(ctx, client, owner, repo, issue.GetNumber())
				if err != nil {
					return nil, err
				}
			}
			chunks = append(chunks, IssueChunks(owner, repo, issue, comments)...)
			loaded++
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		listOpts.ListOptions.Page = resp.NextPage
	}
	return chunks, nil
}

func listComments(ctx context.Context, client *github.Client, owner, repo string, number int) ([]*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.IssueComment
	for {
		comments, resp, err := client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments for #%d: %w", number, err)
		}
		all = append(all, comments...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

// IssueChunks renders one issue or pull request with its comments as a
// markdown document and chunks it by heading.
func IssueChunks(owner, repo string, issue *github.Issue, comments []*github.IssueComment) []ingest.Chunk {
	kind := "Issue"
	if issue.IsPullRequest() {
		kind = "Pull request"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", issue.GetTitle())
	fmt.Fprintf(&b, "%s #%d (%s) by %s\n", kind, issue.GetNumber(), issue.GetState(), issue.GetUser().GetLogin())
	if labels := labelNames(issue.Labels); labels != "" {
		fmt.Fprintf(&b, "Labels: %s\n", labels)
	}
	if body := strings.TrimSpace(issue.GetBody()); body != "" {
		b.WriteString("\n" + body + "\n")
	}
	for _, c := range comments {
		body := strings.TrimSpace(c.GetBody())
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## Comment by %s\n%s\n", c.GetUser().GetLogin(), body)
	}

	origin := issue.GetHTMLURL()
	if origin == "" {
		origin = fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, repo, issue.GetNumber())
	}

	chunks := ingest.ChunkDocument(origin, b.String())
	name := fmt.Sprintf("%s/%s#%d", owner, repo, issue.GetNumber())
	for i := range chunks {
		chunks[i].Name = name
	}
	return chunks
}

func labelNames(labels []*github.Label) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != nil && l.GetName() != "" {
			names = append(names, l.GetName())
		}
	}
	return strings.Join(names, ", ")
}
