// Package workspace resolves the scope path memctx searches under: the git
// worktree root containing a directory, or the directory itself.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6"
)

// Scope describes where a session is running
type Scope struct {
	Dir    string // Absolute working directory
	Root   string // Worktree root, or Dir outside a repository
	Name   string // Project name
	Branch string // Checked-out branch, empty when detached or not a repository
	IsRepo bool
}

// Resolve finds the scope for dir. A directory outside any git repository
// resolves to itself.
func Resolve(dir string) (Scope, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Scope{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return Scope{}, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if info, err := os.Stat(abs); err != nil {
		return Scope{}, err
	} else if !info.IsDir() {
		return Scope{}, fmt.Errorf("%s is not a directory", abs)
	}

	scope := Scope{Dir: abs, Root: abs, Name: ExtractRepoName(abs)}

	root, repo := findRepository(abs)
	if repo == nil {
		return scope, nil
	}

	scope.Root = root
	scope.IsRepo = true
	scope.Name = ExtractRepoName(root)

	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		scope.Branch = head.Name().Short()
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			scope.Name = ExtractRepoName(urls[0])
		}
	}

	return scope, nil
}

// findRepository walks up from dir to the first directory git can open.
func findRepository(dir string) (string, *git.Repository) {
	for p := dir; ; {
		if repo, err := git.PlainOpen(p); err == nil {
			return p, repo
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", nil
		}
		p = parent
	}
}

// ExtractRepoName extracts the repository name from a path or URL.
//
//	/home/me/src/memctx          -> memctx
//	git@github.com:org/repo.git  -> repo
func ExtractRepoName(repo string) string {
	repo = strings.TrimRight(repo, `/\`)
	if i := strings.LastIndexAny(repo, `/\:`); i >= 0 && i < len(repo)-1 {
		repo = repo[i+1:]
	}
	return strings.TrimSuffix(repo, ".git")
}
