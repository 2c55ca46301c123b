// Package gitctx locates the repository pbxmend runs in and reports the git
// state of the manifest it is about to rewrite.
package gitctx

import (
	"errors"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// Context is a minimal view of the repository around the working directory.
type Context struct {
	// Root is the worktree root, or the start directory outside a repository.
	Root   string `json:"root"`
	InRepo bool   `json:"in_repo"`
	Branch string `json:"branch,omitempty"`
	GitSHA string `json:"git_sha,omitempty"`

	repo *git.Repository
}

// Discover walks up from start looking for a git repository. Outside a
// repository it returns a Context rooted at start with InRepo unset.
func Discover(start string) (*Context, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return &Context{Root: abs}, nil
	}
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		// bare repositories have no worktree to resolve paths in
		return &Context{Root: abs}, nil
	}
	ctx := &Context{Root: wt.Filesystem.Root(), InRepo: true, repo: repo}
	if head, err := repo.Head(); err == nil {
		ctx.Branch = head.Name().Short()
		ctx.GitSHA = head.Hash().String()
	}
	return ctx, nil
}

// Modified reports whether the file at path (absolute or relative to Root)
// has staged or unstaged changes. It is false outside a repository.
func (c *Context) Modified(path string) (bool, error) {
	if c == nil || c.repo == nil {
		return false, nil
	}
	rel, err := c.rel(path)
	if err != nil {
		return false, err
	}
	wt, err := c.repo.Worktree()
	if err != nil {
		return false, err
	}
	st, err := wt.Status()
	if err != nil {
		return false, err
	}
	for p, s := range st {
		if filepath.ToSlash(p) != rel && !strings.HasPrefix(filepath.ToSlash(p), rel+"/") {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

func (c *Context) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	r, err := filepath.Rel(c.Root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(r), nil
}
