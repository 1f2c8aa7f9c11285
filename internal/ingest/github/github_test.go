package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/go-github/v77/github"
)

// newTestClient returns a client pointed at a local server running mux.
func newTestClient(t *testing.T, mux *http.ServeMux) *github.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	return client
}

func TestParseRepository(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
		wantErr     bool
	}{
		{"Yates-Labs/memctx", "Yates-Labs", "memctx", false},
		{"https://github.com/Yates-Labs/memctx.git", "Yates-Labs", "memctx", false},
		{"https://github.com/Yates-Labs/memctx/", "Yates-Labs", "memctx", false},
		{"git@github.com:org/repo.git", "org", "repo", false},
		{"memctx", "", "", true},
		{"a/b/c", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		owner, repo, err := ParseRepository(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRepository) {
				t.Errorf("ParseRepository(%q): expected ErrInvalidRepository, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || owner != tt.owner || repo != tt.repo {
			t.Errorf("ParseRepository(%q): expected %s/%s, got %s/%s (%v)", tt.in, tt.owner, tt.repo, owner, repo, err)
		}
	}
}

func TestIssueChunks(t *testing.T) {
	issue := &github.Issue{
		Number:  github.Ptr(42),
		Title:   github.Ptr("Token refresh races"),
		Body:    github.Ptr("Two requests refresh at once."),
		State:   github.Ptr("open"),
		HTMLURL: github.Ptr("https://github.com/o/r/issues/42"),
		User:    &github.User{Login: github.Ptr("ana")},
		Labels:  []*github.Label{{Name: github.Ptr("bug")}, nil},
	}
	comments := []*github.IssueComment{
		{Body: github.Ptr("Add a mutex around refresh."), User: &github.User{Login: github.Ptr("ben")}},
		{Body: github.Ptr("   ")},
	}

	chunks := IssueChunks("o", "r", issue, comments)
	if len(chunks) != 2 {
		t.Fatalf("Expected issue and comment chunks, got %d: %+v", len(chunks), chunks)
	}

	first := chunks[0]
	if first.Heading != "Token refresh races" || first.Name != "o/r#42" {
		t.Errorf("Unexpected first chunk %+v", first)
	}
	if first.Origin != "https://github.com/o/r/issues/42" {
		t.Errorf("Expected HTML URL origin, got %s", first.Origin)
	}
	for _, want := range []string{"Issue #42 (open) by ana", "Labels: bug", "Two requests refresh at once."} {
		if !strings.Contains(first.Content, want) {
			t.Errorf("Expected %q in %q", want, first.Content)
		}
	}

	if chunks[1].Heading != "Comment by ben" || chunks[1].Content != "Add a mutex around refresh." {
		t.Errorf("Unexpected comment chunk %+v", chunks[1])
	}
	if chunks[0].ChunkHash == chunks[1].ChunkHash {
		t.Error("Expected distinct chunk hashes")
	}
}

func TestIssueChunksPullRequestWithoutURL(t *testing.T) {
	pr := &github.Issue{
		Number:           github.Ptr(7),
		Title:            github.Ptr("Add retries"),
		State:            github.Ptr("closed"),
		PullRequestLinks: &github.PullRequestLinks{},
	}

	chunks := IssueChunks("o", "r", pr, nil)
	if len(chunks) != 1 {
		t.Fatalf("Expected one chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "Pull request #7 (closed)") {
		t.Errorf("Expected pull request marker, got %q", chunks[0].Content)
	}
	if chunks[0].Origin != "https://github.com/o/r/issues/7" {
		t.Errorf("Expected fallback origin, got %s", chunks[0].Origin)
	}
}

func TestLoadIssues(t *testing.T) {
	mux := http.NewServeMux()
	var gotState string
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		gotState = r.URL.Query().Get("state")
		fmt.Fprint(w, `[
			{"number": 2, "title": "Second", "body": "b2", "state": "open", "comments": 1,
			 "html_url": "https://github.com/o/r/issues/2"},
			{"number": 1, "title": "First", "body": "b1", "state": "closed", "comments": 0,
			 "html_url": "https://github.com/o/r/issues/1"}
		]`)
	})
	mux.HandleFunc("/repos/o/r/issues/2/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"body": "looks good", "user": {"login": "cy"}}]`)
	})
	mux.HandleFunc("/repos/o/r/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no comment fetch for an issue without comments")
	})

	client := newTestClient(t, mux)
	chunks, err := LoadIssues(context.Background(), client, "o", "r", Options{Comments: true})
	if err != nil {
		t.Fatalf("LoadIssues: %v", err)
	}
	if gotState != "all" {
		t.Errorf("Expected state all, got %q", gotState)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[1].Heading != "Comment by cy" || chunks[2].Name != "o/r#1" {
		t.Errorf("Unexpected chunks %+v", chunks)
	}
}

func TestLoadIssuesRespectsMax(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "1" {
			t.Errorf("Expected per_page 1, got %s", r.URL.Query().Get("per_page"))
		}
		fmt.Fprint(w, `[{"number": 3, "title": "A", "state": "open"}, {"number": 4, "title": "B", "state": "open"}]`)
	})

	chunks, err := LoadIssues(context.Background(), newTestClient(t, mux), "o", "r", Options{Max: 1})
	if err != nil {
		t.Fatalf("LoadIssues: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Name != "o/r#3" {
		t.Errorf("Expected only the first issue, got %+v", chunks)
	}
}

func TestLoadIssuesFollowsPages(t *testing.T) {
	mux := http.NewServeMux()
	var pages []string
	var srvURL string
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		if page == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/issues?page=2>; rel="next"`, srvURL))
			fmt.Fprint(w, `[{"number": 5, "title": "Page one", "state": "open"}]`)
			return
		}
		fmt.Fprint(w, `[{"number": 6, "title": "Page two", "state": "open"}]`)
	})

	client := newTestClient(t, mux)
	srvURL = strings.TrimSuffix(client.BaseURL.String(), "/")

	chunks, err := LoadIssues(context.Background(), client, "o", "r", Options{})
	if err != nil {
		t.Fatalf("LoadIssues: %v", err)
	}
	if len(pages) != 2 || pages[1] != "2" {
		t.Errorf("Expected a second request for page 2, got %v", pages)
	}
	if len(chunks) != 2 || chunks[0].Name != "o/r#5" || chunks[1].Name != "o/r#6" {
		t.Errorf("Expected issues from both pages, got %+v", chunks)
	}
}

func TestLoadIssuesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	if _, err := LoadIssues(context.Background(), newTestClient(t, mux), "o", "r", Options{}); err == nil {
		t.Error("Expected error for a missing repository")
	}
}

func TestLoadIssues_Integration(t *testing.T) {
	token := os.Getenv("GITHUB_TOKEN")
	if testing.Short() || token == "" {
		t.Skip("GITHUB_TOKEN not set, skipping GitHub API tests")
	}

	chunks, err := LoadIssues(context.Background(), NewClient(token), "Yates-Labs", "thunk", Options{Max: 5})
	if err != nil {
		t.Fatalf("LoadIssues: %v", err)
	}
	for _, c := range chunks {
		if c.Origin == "" || c.ChunkHash == "" {
			t.Errorf("Chunk missing origin or hash: %+v", c)
		}
	}
}
