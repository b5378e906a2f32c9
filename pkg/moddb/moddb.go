// Package moddb resolves a mod's public page down to a verified local
// payload file. The host publishes no API, so the pipeline follows links:
//
//	mod root -> downloads page -> newest file page -> mirror start -> file
//
// Each hop is a single fetch with fail-fast error propagation; the only
// state that survives a failed run is whatever a previous successful run
// already wrote atomically.
package moddb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"doomstrap/pkg/archive"
	"doomstrap/pkg/download"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/scrape"
)

var (
	// ErrNoFiles means the downloads page had no file entries: the pipeline
	// cannot proceed, the site layout probably changed.
	ErrNoFiles = errors.New("no file entries found on the downloads page")
	// ErrNoStartLink means the file page lacked a /downloads/start/ link.
	ErrNoStartLink = errors.New("no start link found on the file page")
	// ErrNoMirror means the start page offered no mirror at all.
	ErrNoMirror = errors.New("no mirror link found on the start page")
)

// fileEntryRe matches canonical file pages: .../mods/<slug>/downloads/<id>
// with nothing trailing.
var (
	fileEntryRe = regexp.MustCompile(`/mods/[^/]+/downloads/[^/]+/?$`)
	md5Re       = regexp.MustCompile(`MD5 Hash\s*([a-fA-F0-9]{32})`)
	filenameRe  = regexp.MustCompile(`Filename\s+(\S+)`)
)

// DownloadsPageLink accepts anchors leading to a mod's downloads listing:
// either the URL names both mods and downloads, or the visible text says so
// while the URL stays within the mods section.
func DownloadsPageLink(absURL, text string) bool {
	if strings.Contains(absURL, "/mods/") && strings.Contains(absURL, "/downloads") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	return (lower == "downloads" || lower == "files") && strings.Contains(absURL, "/mods/")
}

// FileEntryLink accepts anchors pointing at individual file pages, skipping
// the upload form the site lists alongside them.
func FileEntryLink(absURL, _ string) bool {
	return fileEntryRe.MatchString(absURL) && !strings.Contains(absURL, "upload")
}

// StartLink accepts the mirror-start redirect anchor on a file page.
func StartLink(absURL, _ string) bool {
	return strings.Contains(absURL, "/downloads/start/")
}

// FileInfo is what a file detail page yields: where the mirror redirect
// lives, plus the optional published digest and filename.
type FileInfo struct {
	StartURL      string
	MD5           string // lowercase hex, "" when the page had none
	SuggestedName string // "" when the page had none
}

// Payload is the pipeline's result. Ownership passes to the caller, which
// treats Path as a read-only input file.
type Payload struct {
	Path       string
	URL        string
	Verified   bool // a published checksum was checked against the file
	Downloaded bool // false when the cached local file was already good
}

// Resolver runs the acquisition pipeline against one mod host.
type Resolver struct {
	Client *fetch.Client
}

// FindDownloadsPage locates the downloads listing for a mod root page. When
// no matching anchor exists the deterministic fallback {root}/downloads is
// returned; the shortest candidate URL wins otherwise, which skips the
// per-file deep links in favor of the listing itself.
func (r *Resolver) FindDownloadsPage(ctx context.Context, modRootURL string) (string, error) {
	base, doc, err := r.get(ctx, modRootURL)
	if err != nil {
		return "", err
	}

	candidates := scrape.Links(doc, base, DownloadsPageLink)
	if len(candidates) == 0 {
		return strings.TrimRight(modRootURL, "/") + "/downloads", nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) < len(candidates[j])
	})
	return candidates[0], nil
}

// NewestFilePage returns the topmost file entry on the downloads page. The
// site lists newest first, so document order is release order.
func (r *Resolver) NewestFilePage(ctx context.Context, downloadsURL string) (string, error) {
	base, doc, err := r.get(ctx, downloadsURL)
	if err != nil {
		return "", err
	}

	entries := scrape.Links(doc, base, FileEntryLink)
	if len(entries) == 0 {
		return "", ErrNoFiles
	}
	return entries[0], nil
}

// ParseFilePage extracts the mirror start link plus the optional MD5 digest
// and suggested filename from a file detail page.
func (r *Resolver) ParseFilePage(ctx context.Context, filePageURL string) (FileInfo, error) {
	base, doc, err := r.get(ctx, filePageURL)
	if err != nil {
		return FileInfo{}, err
	}

	var info FileInfo
	text := scrape.Text(doc)
	if m := md5Re.FindStringSubmatch(text); m != nil {
		info.MD5 = strings.ToLower(m[1])
	}
	if m := filenameRe.FindStringSubmatch(text); m != nil {
		info.SuggestedName = m[1]
	}

	starts := scrape.Links(doc, base, StartLink)
	if len(starts) == 0 {
		return FileInfo{}, ErrNoStartLink
	}
	info.StartURL = starts[0]
	return info, nil
}

// ResolveMirror follows the start page to the direct download URL, which is
// simply the first anchor on that page.
func (r *Resolver) ResolveMirror(ctx context.Context, startURL string) (string, error) {
	base, doc, err := r.get(ctx, startURL)
	if err != nil {
		return "", err
	}
	direct := scrape.FirstLink(doc, base)
	if direct == "" {
		return "", ErrNoMirror
	}
	return direct, nil
}

// EnsurePayload runs the whole pipeline and guarantees a verified payload
// file under modsDir. The network download is skipped when a local file of
// the expected name already exists and either no checksum was published or
// the file matches it — unless force is set. A payload with a published
// checksum is never returned unless the on-disk file matches it.
func (r *Resolver) EnsurePayload(ctx context.Context, modRootURL, modsDir string, force bool, progress download.Progress) (Payload, error) {
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		return Payload{}, fmt.Errorf("failed to create mods dir: %w", err)
	}

	downloadsURL, err := r.FindDownloadsPage(ctx, modRootURL)
	if err != nil {
		return Payload{}, err
	}
	filePageURL, err := r.NewestFilePage(ctx, downloadsURL)
	if err != nil {
		return Payload{}, err
	}
	info, err := r.ParseFilePage(ctx, filePageURL)
	if err != nil {
		return Payload{}, err
	}
	directURL, err := r.ResolveMirror(ctx, info.StartURL)
	if err != nil {
		return Payload{}, err
	}

	localName := info.SuggestedName
	if localName == "" {
		localName = urlFilename(directURL)
	}
	localPath := filepath.Join(modsDir, localName)

	need := force || !fileExists(localPath)
	if !need && info.MD5 != "" {
		// The existing file is only trusted if it still matches the
		// published digest.
		need = download.VerifyMD5(localPath, info.MD5) != nil
	}
	if need {
		if err := download.Fetch(ctx, r.Client, directURL, localPath, download.Options{
			MD5:      info.MD5,
			Progress: progress,
		}); err != nil {
			return Payload{}, err
		}
	}

	payloadPath, err := archive.Unpack(localPath)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Path:       payloadPath,
		URL:        directURL,
		Verified:   info.MD5 != "",
		Downloaded: need,
	}, nil
}

func (r *Resolver) get(ctx context.Context, rawURL string) (*url.URL, []byte, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bad url %q: %w", rawURL, err)
	}
	doc, err := r.Client.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return base, doc, nil
}

// urlFilename extracts the percent-decoded final path segment of a URL.
func urlFilename(rawURL string) string {
	trimmed := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		trimmed = u.Path
	}
	name := path.Base(trimmed)
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
