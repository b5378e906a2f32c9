// Package iwad locates a base game WAD, downloading Freedoom when the
// IWAD directory has none.
package iwad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"doomstrap/pkg/archive"
	"doomstrap/pkg/download"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/github"
	"doomstrap/pkg/pick"
)

// ErrNoIWAD is returned when no WAD can be located or installed.
var ErrNoIWAD = errors.New("no IWAD found")

// Options configures IWAD acquisition.
type Options struct {
	Client      *fetch.Client
	GitHub      *github.Client
	Repo        string // GitHub repo publishing Freedoom releases
	Dir         string // IWAD install directory
	ForceUpdate bool   // download even when a local WAD exists
	Progress    download.Progress
}

// PickBestLocal returns the highest-ranked *.wad under dir. The top level
// is scanned first so installed IWADs beat leftovers inside extracted
// release subdirectories.
func PickBestLocal(dir string) (string, bool) {
	if best, ok := bestIn(listWADs(dir, false)); ok {
		return best, true
	}
	return bestIn(listWADs(dir, true))
}

func bestIn(candidates []string) (string, bool) {
	return pick.Best(candidates, pick.WADRank)
}

func listWADs(dir string, recursive bool) []string {
	var out []string
	if recursive {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wad") {
				out = append(out, path)
			}
			return nil
		})
		return out
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".wad") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// Ensure returns the path of a usable IWAD, installing Freedoom into
// opts.Dir when none is present.
func Ensure(ctx context.Context, opts Options) (string, error) {
	if !opts.ForceUpdate {
		if best, ok := PickBestLocal(opts.Dir); ok {
			return best, nil
		}
	}

	rel, err := opts.GitHub.LatestRelease(ctx, opts.Repo)
	if err != nil {
		return "", fmt.Errorf("failed to query Freedoom releases: %w", err)
	}
	asset, err := pickFreedoomAsset(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return "", err
	}
	zpath := filepath.Join(opts.Dir, asset.Name)
	if err := download.Fetch(ctx, opts.Client, asset.BrowserDownloadURL, zpath, download.Options{Progress: opts.Progress}); err != nil {
		return "", err
	}

	extractDir := strings.TrimSuffix(zpath, filepath.Ext(zpath))
	if err := archive.ExtractAll(zpath, extractDir); err != nil {
		return "", err
	}

	// Promote the extracted WADs so the next run finds them shallowly.
	for _, wad := range listWADs(extractDir, true) {
		copyFile(wad, filepath.Join(opts.Dir, filepath.Base(wad)))
	}

	best, ok := PickBestLocal(opts.Dir)
	if !ok {
		return "", fmt.Errorf("%w: %s contained no WAD files", ErrNoIWAD, asset.Name)
	}
	return best, nil
}

// pickFreedoomAsset prefers the full "freedoom" zip over the deathmatch-only
// "freedm" one, falling back to the first zip present.
func pickFreedoomAsset(rel *github.Release) (github.Asset, error) {
	var zips []github.Asset
	for _, a := range rel.Assets {
		if strings.EqualFold(filepath.Ext(a.Name), ".zip") {
			zips = append(zips, a)
		}
	}
	for _, a := range zips {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, "freedoom") && !strings.Contains(name, "freedm") {
			return a, nil
		}
	}
	if len(zips) > 0 {
		return zips[0], nil
	}
	return github.Asset{}, fmt.Errorf("%w: release %s has no zip asset", github.ErrNoAsset, rel.TagName)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
