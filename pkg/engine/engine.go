// Package engine acquires and launches the GZDoom binary. Resolution order:
// an explicit path wins, then a previously installed copy under the bin dir,
// then a PATH hit, and only then a download — Windows builds come from the
// project's GitHub releases, Linux builds from the AppImage index the
// project publishes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"doomstrap/pkg/archive"
	"doomstrap/pkg/download"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/github"
	"doomstrap/pkg/scrape"
)

// ErrUnsupportedOS is returned when auto-install has no source for the
// current platform.
var ErrUnsupportedOS = errors.New("unsupported OS for engine auto-install")

// ErrNoAppImage means the Linux binary index listed no AppImage.
var ErrNoAppImage = errors.New("no AppImage found on the binary index")

// Options configures engine acquisition.
type Options struct {
	Client        *fetch.Client
	GitHub        *github.Client
	Repo          string   // GitHub repo providing Windows builds
	AssetTokens   []string // tokens the Windows asset name must contain
	AppImageIndex string   // HTML index listing Linux AppImages
	BinDir        string   // install target
	PreferPath    string   // explicit engine path, wins when executable
	ForceUpdate   bool
	Progress      download.Progress
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "gzdoom.exe"
	}
	return "gzdoom"
}

// Ensure returns the path of a runnable engine binary, downloading one when
// nothing usable is installed.
func Ensure(ctx context.Context, opts Options) (string, error) {
	if opts.PreferPath != "" && IsExecutable(opts.PreferPath) {
		return filepath.Abs(opts.PreferPath)
	}

	if !opts.ForceUpdate {
		if local := findInstalled(opts.BinDir); local != "" {
			return local, nil
		}
		if hit, err := Which(binaryName()); err == nil {
			return hit, nil
		}
	}

	if err := os.MkdirAll(opts.BinDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bin dir: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		return ensureWindows(ctx, opts)
	case "linux":
		return ensureLinux(ctx, opts)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
	}
}

// findInstalled looks for the engine binary under dir: the canonical name
// first, then a recursive scan (Windows release zips nest the exe).
func findInstalled(dir string) string {
	direct := filepath.Join(dir, binaryName())
	if IsExecutable(direct) {
		return direct
	}
	var found string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return fs.SkipAll
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), binaryName()) && IsExecutable(path) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func ensureWindows(ctx context.Context, opts Options) (string, error) {
	rel, err := opts.GitHub.LatestRelease(ctx, opts.Repo)
	if err != nil {
		return "", err
	}
	asset, err := github.FindAsset(rel, opts.AssetTokens...)
	if err != nil {
		return "", err
	}

	zpath := filepath.Join(filepath.Dir(opts.BinDir), asset.Name)
	if _, statErr := os.Stat(zpath); statErr != nil || opts.ForceUpdate {
		if err := download.Fetch(ctx, opts.Client, asset.BrowserDownloadURL, zpath, download.Options{Progress: opts.Progress}); err != nil {
			return "", err
		}
	}
	if err := archive.ExtractAll(zpath, opts.BinDir); err != nil {
		return "", err
	}

	exe := findInstalled(opts.BinDir)
	if exe == "" {
		return "", fmt.Errorf("%s not found after extracting %s", binaryName(), asset.Name)
	}
	return exe, nil
}

func ensureLinux(ctx context.Context, opts Options) (string, error) {
	name, dlURL, err := LatestAppImage(ctx, opts.Client, opts.AppImageIndex)
	if err != nil {
		return "", err
	}

	out := filepath.Join(opts.BinDir, name)
	if _, statErr := os.Stat(out); os.IsNotExist(statErr) || opts.ForceUpdate {
		if err := download.Fetch(ctx, opts.Client, dlURL, out, download.Options{Progress: opts.Progress}); err != nil {
			return "", err
		}
		if err := os.Chmod(out, 0755); err != nil {
			return "", fmt.Errorf("failed to mark %s executable: %w", out, err)
		}
	}
	return filepath.Abs(out)
}

// LatestAppImage scrapes the binary index page and returns the name and
// absolute URL of the first AppImage listed.
func LatestAppImage(ctx context.Context, client *fetch.Client, indexURL string) (name, dlURL string, err error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return "", "", fmt.Errorf("bad index url %q: %w", indexURL, err)
	}
	doc, err := client.Get(ctx, indexURL)
	if err != nil {
		return "", "", err
	}

	links := scrape.Links(doc, base, func(absURL, _ string) bool {
		return strings.HasSuffix(strings.ToLower(absURL), ".appimage")
	})
	if len(links) == 0 {
		return "", "", ErrNoAppImage
	}

	parsed, err := url.Parse(links[0])
	if err != nil {
		return "", "", err
	}
	return filepath.Base(parsed.Path), links[0], nil
}

// IsExecutable reports whether the file at p can be spawned: on Windows by
// extension, elsewhere by any execute bit.
func IsExecutable(p string) bool {
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".exe", ".bat", ".cmd":
			return true
		}
		return false
	}
	return st.Mode()&0111 != 0
}

// Which finds name on PATH, requiring executability.
func Which(name string) (string, error) {
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if IsExecutable(p) {
			return filepath.Abs(p)
		}
	}
	return "", fmt.Errorf("%s not found on PATH", name)
}

// MirrorIWAD copies the IWAD next to the engine binary when missing or
// size-changed. Engine builds resolve bare -iwad names against their own
// directory first; the copy failure is non-fatal because the launcher also
// passes the full path.
func MirrorIWAD(iwadPath, enginePath string) string {
	dst := filepath.Join(filepath.Dir(enginePath), filepath.Base(iwadPath))
	srcInfo, err := os.Stat(iwadPath)
	if err != nil {
		return dst
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.Size() == srcInfo.Size() {
		return dst
	}
	if err := copyFile(iwadPath, dst); err != nil {
		return dst
	}
	return dst
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

// LaunchSpec is everything a game session needs on the command line.
type LaunchSpec struct {
	Engine    string
	IWAD      string
	ModFiles  []string
	SaveDir   string
	ConfigINI string
	ExtraArgs []string
}

// Argv renders the engine command line.
func (s LaunchSpec) Argv() []string {
	argv := []string{s.Engine, "-iwad", s.IWAD}
	for _, f := range s.ModFiles {
		argv = append(argv, "-file", f)
	}
	argv = append(argv, "-savedir", s.SaveDir, "-config", s.ConfigINI)
	return append(argv, s.ExtraArgs...)
}

// Launch spawns the engine detached: the launcher's job ends once the game
// is running. Save and config directories are created first so a fresh
// install works.
func Launch(spec LaunchSpec) error {
	if err := os.MkdirAll(spec.SaveDir, 0755); err != nil {
		return fmt.Errorf("failed to create save dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(spec.ConfigINI), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if runtime.GOOS != "windows" {
		if st, err := os.Stat(spec.Engine); err == nil {
			os.Chmod(spec.Engine, st.Mode()|0100)
		}
	}

	argv := spec.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(spec.Engine)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	// Detach: the game outlives the launcher process.
	return cmd.Process.Release()
}
