// Package gitsource fetches import tables that live in git repositories.
//
// A reference of the form <repo-url>//<path/in/repo> names a file inside a
// repository. The repository is cloned into a local cache, or pulled when it
// is already there, and the file is read from the working tree.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Ref is a file inside a git repository.
type Ref struct {
	Repo string
	File string
}

func (r Ref) String() string {
	return r.Repo + "//" + r.File
}

// Split parses a <repo-url>//<path/in/repo> reference. It reports false for
// anything that is not a git URL followed by a path, so plain file paths are
// left alone.
func Split(ref string) (Ref, bool) {
	start := 0
	if i := strings.Index(ref, "://"); i >= 0 {
		start = i + len("://")
	}
	j := strings.Index(ref[start:], "//")
	if j < 0 {
		return Ref{}, false
	}
	r := Ref{Repo: ref[:start+j], File: ref[start+j+2:]}
	if r.File == "" || !IsRemote(r.Repo) {
		return Ref{}, false
	}
	return r, true
}

// IsRemote reports whether repoURL is a URL that can be cloned: http, https,
// file, ssh, or the scp-like git@host:owner/repo form.
func IsRemote(repoURL string) bool {
	u, err := url.Parse(repoURL)
	if err == nil {
		switch u.Scheme {
		case "https", "http", "ssh":
			return u.Host != ""
		case "file":
			return u.Path != ""
		}
	}
	_, _, ok := scpLike(repoURL)
	return ok
}

func scpLike(repoURL string) (host, repoPath string, ok bool) {
	if !strings.Contains(repoURL, "@") {
		return "", "", false
	}
	parts := strings.Split(repoURL, ":")
	if len(parts) != 2 {
		return "", "", false
	}
	hostAndUser := strings.Split(parts[0], "@")
	if len(hostAndUser) != 2 || hostAndUser[1] == "" || parts[1] == "" {
		return "", "", false
	}
	return hostAndUser[1], parts[1], true
}

// LocalPath maps a repository URL to its checkout directory under baseDir:
// <baseDir>/<host>/<repo-path>, without a trailing .git.
func LocalPath(baseDir, repoURL string) (string, error) {
	var host, repoPath string
	parsedURL, err := url.Parse(repoURL)
	switch {
	case err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http" || parsedURL.Scheme == "ssh"):
		host, repoPath = parsedURL.Hostname(), parsedURL.Path
	case err == nil && parsedURL.Scheme == "file":
		host, repoPath = "local", parsedURL.Path
	default:
		var ok bool
		host, repoPath, ok = scpLike(repoURL)
		if !ok {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
	}

	sanitizedPath := strings.TrimSuffix(strings.TrimSuffix(repoPath, "/"), ".git")
	localPath := filepath.Join(baseDir, host, filepath.FromSlash(sanitizedPath))
	if !within(baseDir, localPath) || localPath == filepath.Clean(baseDir) {
		return "", fmt.Errorf("git URL %s maps outside of %s", repoURL, baseDir)
	}
	return localPath, nil
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, repoURL, localPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("Cloning repository", "url", repoURL, "path", localPath)
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory for %s: %w", repoURL, err)
		}
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL: repoURL,
		})
		if err != nil {
			os.RemoveAll(localPath)
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
		logger.Debug("Clone successful", "path", localPath)
	case err == nil:
		logger.Info("Pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		logger.Debug("Pull successful (or already up-to-date)", "path", localPath)
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// Resolve turns an import reference into a local file path. Git references
// are synced into cacheDir first; anything else is returned unchanged.
func Resolve(ctx context.Context, ref, cacheDir string, logger *slog.Logger) (string, error) {
	r, ok := Split(ref)
	if !ok {
		return ref, nil
	}

	localPath, err := LocalPath(cacheDir, r.Repo)
	if err != nil {
		return "", err
	}
	if err := Sync(ctx, r.Repo, localPath, logger); err != nil {
		return "", err
	}

	file := filepath.Join(localPath, filepath.FromSlash(r.File))
	if !within(localPath, file) || file == localPath {
		return "", fmt.Errorf("path %s escapes repository %s", r.File, r.Repo)
	}
	return file, nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
