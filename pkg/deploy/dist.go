// Package deploy publishes build artifacts: it uploads them to GitHub
// releases and records them in the dist repo's manifest.json.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Dist is a working checkout of the distribution repository.
type Dist struct {
	Dir    string // local checkout path
	Remote string // clone URL, used only when Dir does not exist yet
}

// ManifestPath is the manifest location inside the checkout.
func (d *Dist) ManifestPath() string {
	return filepath.Join(d.Dir, "manifest.json")
}

// Ensure clones the dist repo if missing, otherwise pulls the latest
// manifest so deploys never build on a stale base.
func (d *Dist) Ensure(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(d.Dir, ".git")); os.IsNotExist(err) {
		slog.Info("cloning dist repo", "remote", d.Remote, "dir", d.Dir)
		if err := os.MkdirAll(filepath.Dir(d.Dir), 0755); err != nil {
			return err
		}
		_, err := runGit(ctx, "", "clone", d.Remote, d.Dir)
		return err
	}
	slog.Info("updating dist repo", "dir", d.Dir)
	_, err := runGit(ctx, d.Dir, "pull", "--ff-only")
	return err
}

// Repo returns the "owner/repo" slug of the checkout's origin remote.
// Both SSH and HTTPS remote URLs are understood.
func (d *Dist) Repo() (string, error) {
	out, err := runGit(context.Background(), d.Dir, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return parseRepoURL(strings.TrimSpace(out))
}

func parseRepoURL(url string) (string, error) {
	var path string
	switch {
	case strings.HasPrefix(url, "git@github.com:"):
		path = strings.TrimPrefix(url, "git@github.com:")
	case strings.Contains(url, "github.com/"):
		path = url[strings.Index(url, "github.com/")+len("github.com/"):]
	default:
		return "", fmt.Errorf("unable to parse repository name from URL %q", url)
	}
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("unable to parse repository name from URL %q", url)
	}
	return parts[0] + "/" + parts[1], nil
}

// CommitAndPush commits manifest.json and pushes. A clean worktree is a
// no-op, not an error, so re-running a deploy stays idempotent.
func (d *Dist) CommitAndPush(ctx context.Context, message string) error {
	status, err := runGit(ctx, d.Dir, "status", "--porcelain")
	if err != nil {
		return err
	}
	if strings.TrimSpace(status) == "" {
		slog.Info("no manifest changes to commit")
		return nil
	}

	if _, err := runGit(ctx, d.Dir, "add", "manifest.json"); err != nil {
		return err
	}
	if _, err := runGit(ctx, d.Dir, "commit", "-m", message); err != nil {
		return err
	}
	slog.Info("pushing manifest", "message", message)
	if _, err := runGit(ctx, d.Dir, "push", "origin", "HEAD"); err != nil {
		return fmt.Errorf("failed to push, pull and merge remote changes first: %w", err)
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
