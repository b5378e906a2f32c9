package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"doomstrap/pkg/download"
	"doomstrap/pkg/github"
	"doomstrap/pkg/manifest"
	"doomstrap/pkg/semver"
)

// GameOptions describes one game build deployment.
type GameOptions struct {
	GitHub  *github.Client
	Dist    *Dist
	File    string // path to the built game package
	Version string
	Label   string
	Channel string
	Notes   string
}

// Game publishes a game build: GitHub release tagged game-<version>, asset
// upload, manifest entry, manifest commit. Re-deploying an existing version
// replaces its manifest entry.
func Game(ctx context.Context, opts GameOptions) (*manifest.GameBuild, error) {
	if _, err := os.Stat(opts.File); err != nil {
		return nil, fmt.Errorf("game package not found: %w", err)
	}
	if err := opts.Dist.Ensure(ctx); err != nil {
		return nil, err
	}

	sum, err := download.SHA256File(opts.File)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(opts.File)
	if err != nil {
		return nil, err
	}
	slog.Info("computed artifact metadata",
		"file", filepath.Base(opts.File),
		"sha256", sum,
		"size_bytes", info.Size())

	repo, err := opts.Dist.Repo()
	if err != nil {
		return nil, err
	}

	tag := "game-" + opts.Version
	rel, err := ensureRelease(ctx, opts.GitHub, repo, tag, "Game "+opts.Version, opts.Notes)
	if err != nil {
		return nil, err
	}
	slog.Info("release ready", "tag", tag, "url", rel.HTMLURL)

	data, err := os.ReadFile(opts.File)
	if err != nil {
		return nil, err
	}
	asset, err := opts.GitHub.UploadAsset(ctx, repo, rel.ID, filepath.Base(opts.File), data)
	if err != nil {
		return nil, err
	}
	slog.Info("asset uploaded", "url", asset.BrowserDownloadURL)

	build := manifest.GameBuild{
		Version:     opts.Version,
		Label:       opts.Label,
		Channel:     opts.Channel,
		Recommended: true,
		Windows: manifest.Artifact{
			URL:       asset.BrowserDownloadURL,
			SHA256:    sum,
			SizeBytes: info.Size(),
			Filename:  filepath.Base(opts.File),
		},
		Changelog: opts.Notes,
	}

	m, err := loadOrInit(opts.Dist.ManifestPath())
	if err != nil {
		return nil, err
	}
	if cur := m.CurrentGameVersion(); semver.Parse(opts.Version).Less(semver.Parse(cur)) {
		slog.Warn("deploying a version older than the current build", "version", opts.Version, "current", cur)
	}
	m.UpsertGameBuild(build)
	if err := manifest.Save(opts.Dist.ManifestPath(), m); err != nil {
		return nil, err
	}

	if err := opts.Dist.CommitAndPush(ctx, "Add game build "+opts.Version); err != nil {
		return nil, err
	}
	return &build, nil
}

// LauncherOptions describes a launcher deployment.
type LauncherOptions struct {
	GitHub *github.Client
	Dist   *Dist
	File   string // path to the built launcher executable
	Notes  string
}

// Launcher publishes a new launcher build. Revisions are a counter kept in
// the manifest: each deploy bumps it and tags the release launcher-r<rev>,
// which is what the entrypoint compares against its local sidecar.
func Launcher(ctx context.Context, opts LauncherOptions) (*manifest.Launcher, error) {
	if _, err := os.Stat(opts.File); err != nil {
		return nil, fmt.Errorf("launcher artifact not found: %w", err)
	}
	if err := opts.Dist.Ensure(ctx); err != nil {
		return nil, err
	}

	m, err := loadOrInit(opts.Dist.ManifestPath())
	if err != nil {
		return nil, err
	}
	rev := m.LauncherRevision() + 1

	sum, err := download.SHA256File(opts.File)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(opts.File)
	if err != nil {
		return nil, err
	}

	repo, err := opts.Dist.Repo()
	if err != nil {
		return nil, err
	}

	tag := "launcher-r" + strconv.Itoa(rev)
	rel, err := ensureRelease(ctx, opts.GitHub, repo, tag, "Launcher "+tag, opts.Notes)
	if err != nil {
		return nil, err
	}
	slog.Info("release ready", "tag", tag, "url", rel.HTMLURL)

	data, err := os.ReadFile(opts.File)
	if err != nil {
		return nil, err
	}
	asset, err := opts.GitHub.UploadAsset(ctx, repo, rel.ID, filepath.Base(opts.File), data)
	if err != nil {
		return nil, err
	}
	slog.Info("asset uploaded", "url", asset.BrowserDownloadURL)

	m.Launcher = &manifest.Launcher{
		Version: strconv.Itoa(rev),
		Windows: manifest.Artifact{
			URL:       asset.BrowserDownloadURL,
			SHA256:    sum,
			SizeBytes: info.Size(),
			Filename:  filepath.Base(opts.File),
		},
		Notes: opts.Notes,
	}
	if err := manifest.Save(opts.Dist.ManifestPath(), m); err != nil {
		return nil, err
	}

	if err := opts.Dist.CommitAndPush(ctx, "Update launcher to r"+strconv.Itoa(rev)); err != nil {
		return nil, err
	}
	return m.Launcher, nil
}

// ensureRelease creates the release, falling back to the existing one when
// the tag is already taken so re-running a deploy stays idempotent.
func ensureRelease(ctx context.Context, gh *github.Client, repo, tag, name, notes string) (*github.Release, error) {
	rel, err := gh.CreateRelease(ctx, repo, tag, name, notes)
	if err == nil {
		return rel, nil
	}
	existing, tagErr := gh.ReleaseByTag(ctx, repo, tag)
	if tagErr != nil {
		return nil, err
	}
	slog.Info("reusing existing release", "tag", tag)
	return existing, nil
}

// loadOrInit tolerates a dist repo that has no manifest yet.
func loadOrInit(path string) (*manifest.Manifest, error) {
	m, err := manifest.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest.Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
