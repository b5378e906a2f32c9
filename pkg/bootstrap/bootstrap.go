// Package bootstrap implements the entrypoint's self-update of the
// launcher. The entrypoint binary stays dumb and stable; the launcher next
// to it under app/ is replaced whenever the dist repo publishes a newer
// launcher release.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/lucasew/fetchurl"

	"doomstrap/pkg/download"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/github"
)

const sidecarName = "launcher_version.json"

// ErrNoLauncher means there is no local launcher and the update server is
// unreachable, so nothing can be started.
var ErrNoLauncher = errors.New("no local launcher and update server unreachable")

// Sidecar records which launcher build is installed. It sits next to the
// launcher so a deleted app dir forces a clean reinstall.
type Sidecar struct {
	Tag    string `json:"tag_name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
	URL    string `json:"url"`
}

// Options configures the bootstrap run.
type Options struct {
	Client    *fetch.Client
	GitHub    *github.Client
	Repo      string // dist repo publishing launcher releases
	AssetName string // exact launcher asset filename
	AppDir    string // install dir, defaults to app/ next to the executable
	Progress  download.Progress
}

// AppDir returns the app/ directory next to the running executable,
// creating it when missing.
func AppDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(filepath.Dir(exe), "app")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// LatestInfo resolves the newest launcher release into a Sidecar. The
// sha256 comes from the asset digest when GitHub reports one.
func LatestInfo(ctx context.Context, gh *github.Client, repo, assetName string) (*Sidecar, error) {
	rel, err := gh.LatestRelease(ctx, repo)
	if err != nil {
		return nil, err
	}
	asset, err := github.FindAssetByName(rel, assetName)
	if err != nil {
		return nil, err
	}
	info := &Sidecar{
		Tag:  rel.TagName,
		Size: asset.Size,
		URL:  asset.BrowserDownloadURL,
	}
	if algo, hash := github.SplitDigest(asset.Digest); algo == "sha256" {
		info.SHA256 = hash
	}
	return info, nil
}

func loadSidecar(path string) *Sidecar {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

func saveSidecar(path string, s *Sidecar) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// needsUpdate decides whether to replace the installed launcher. A missing
// binary or sidecar always updates; otherwise the release tag decides, with
// an on-disk size check catching truncated installs.
func needsUpdate(launcherPath string, local, latest *Sidecar) bool {
	st, err := os.Stat(launcherPath)
	if err != nil {
		return true
	}
	if local == nil {
		return true
	}
	if local.Tag != latest.Tag {
		return true
	}
	return st.Size() != latest.Size
}

// install downloads the launcher. When the release carries a sha256 digest
// the transfer is hash-verified; otherwise a size comparison stands in.
func install(ctx context.Context, opts Options, latest *Sidecar, dest string) error {
	if latest.SHA256 != "" {
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		fetcher := fetchurl.NewFetcher(opts.Client.HTTP())
		err = fetcher.Fetch(ctx, fetchurl.FetchOptions{
			URLs: []string{latest.URL},
			Algo: "sha256",
			Hash: latest.SHA256,
			Out:  out,
		})
		closeErr := out.Close()
		if err != nil {
			os.Remove(dest)
			return err
		}
		if closeErr != nil {
			os.Remove(dest)
			return closeErr
		}
	} else {
		if err := download.Fetch(ctx, opts.Client, latest.URL, dest, download.Options{Progress: opts.Progress}); err != nil {
			return err
		}
		st, err := os.Stat(dest)
		if err != nil {
			return err
		}
		if st.Size() != latest.Size {
			os.Remove(dest)
			return fmt.Errorf("downloaded launcher is %d bytes, release reports %d", st.Size(), latest.Size)
		}
	}
	if runtime.GOOS != "windows" {
		os.Chmod(dest, 0755)
	}
	return nil
}

// Ensure brings the installed launcher up to date and returns its path.
// When the release host is unreachable an existing install is returned
// as-is so the game still starts offline.
func Ensure(ctx context.Context, opts Options) (string, error) {
	if opts.AppDir == "" {
		dir, err := AppDir()
		if err != nil {
			return "", err
		}
		opts.AppDir = dir
	}
	launcherPath := filepath.Join(opts.AppDir, opts.AssetName)
	sidecarPath := filepath.Join(opts.AppDir, sidecarName)

	latest, err := LatestInfo(ctx, opts.GitHub, opts.Repo, opts.AssetName)
	if err != nil {
		if _, statErr := os.Stat(launcherPath); statErr == nil {
			slog.Warn("update check failed, launching installed version", "err", err)
			return launcherPath, nil
		}
		return "", fmt.Errorf("%w: %v", ErrNoLauncher, err)
	}

	if needsUpdate(launcherPath, loadSidecar(sidecarPath), latest) {
		slog.Info("updating launcher", "tag", latest.Tag, "size", latest.Size)
		if err := install(ctx, opts, latest, launcherPath); err != nil {
			return "", err
		}
		if err := saveSidecar(sidecarPath, latest); err != nil {
			slog.Warn("failed to save version info", "err", err)
		}
	} else {
		slog.Debug("launcher up to date", "tag", latest.Tag)
	}
	return launcherPath, nil
}

// Run updates the launcher and starts it detached from its own directory.
func Run(ctx context.Context, opts Options) error {
	launcherPath, err := Ensure(ctx, opts)
	if err != nil {
		return err
	}
	cmd := exec.Command(launcherPath)
	cmd.Dir = filepath.Dir(launcherPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start launcher: %w", err)
	}
	return cmd.Process.Release()
}
