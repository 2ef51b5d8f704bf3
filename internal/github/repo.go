package github

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Local checkout failures. Each is also wrapped with ErrInvalidIdentity.
var (
	ErrNotGitRepository = errors.New("not a git repository")
	ErrNoRemote         = errors.New("no origin remote configured")
	ErrDetachedHead     = errors.New("HEAD is detached")
)

// RemoteName is the remote whose URL identifies the repository.
const RemoteName = "origin"

// LocalRepo is the GitHub repository and current branch of a checkout.
type LocalRepo struct {
	Owner     string
	Repo      string
	Branch    string
	RemoteURL string
}

// GitLocator reads repository identity from a local checkout with go-git.
type GitLocator struct {
	// Hosts accepted for the origin remote. Empty means github.com.
	Hosts []string
}

// Locate opens the repository containing dir (searching parent directories)
// and reports the origin remote's owner/repo and the branch HEAD points at.
func (l GitLocator) Locate(dir string) (LocalRepo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return LocalRepo{}, fmt.Errorf("%w: %w: %s", ErrInvalidIdentity, ErrNotGitRepository, dir)
		}
		return LocalRepo{}, fmt.Errorf("open git repository %s: %w", dir, err)
	}

	remote, err := repo.Remote(RemoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return LocalRepo{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, ErrNoRemote)
		}
		return LocalRepo{}, fmt.Errorf("read remote %s: %w", RemoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return LocalRepo{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, ErrNoRemote)
	}
	owner, name, err := ParseRemoteURL(urls[0], l.Hosts...)
	if err != nil {
		return LocalRepo{}, err
	}

	branch, err := currentBranch(repo)
	if err != nil {
		return LocalRepo{}, err
	}

	return LocalRepo{Owner: owner, Repo: name, Branch: branch, RemoteURL: urls[0]}, nil
}

// currentBranch resolves HEAD without following it, so an unborn branch in a
// fresh repository still reports its name.
func currentBranch(repo *git.Repository) (string, error) {
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "", fmt.Errorf("%w: %w", ErrInvalidIdentity, ErrDetachedHead)
	}
	return head.Target().Short(), nil
}
