package moddb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"doomstrap/pkg/download"
	"doomstrap/pkg/fetch"
)

// helloMD5 is md5("hello"); the fake site serves "hello" as the payload.
const helloMD5 = "5d41402abc4b2a76b9719d911017c592"

// fakeSite models the mod host: root page, downloads listing, file page,
// mirror start page and the payload itself.
type fakeSite struct {
	mux          *http.ServeMux
	srv          *httptest.Server
	payloadHits  atomic.Int64
	payloadBytes []byte
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	s := &fakeSite{mux: http.NewServeMux(), payloadBytes: []byte("hello")}
	s.srv = httptest.NewServer(s.mux)
	t.Cleanup(s.srv.Close)

	s.mux.HandleFunc("/mods/demo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/mods/demo/downloads">Downloads</a>
			<a href="/news">News</a>
		</body></html>`)
	})
	s.mux.HandleFunc("/mods/demo/downloads", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/mods/demo/downloads/upload">Add file</a>
			<a href="/mods/demo/downloads/42">newest release</a>
			<a href="/mods/demo/downloads/41">older release</a>
		</body></html>`)
	})
	s.mux.HandleFunc("/mods/demo/downloads/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<p>Filename example.pk3</p>
			<p>MD5 Hash %s</p>
			<a href="/mods/demo/downloads/start/42">Download now</a>
		</body></html>`, helloMD5)
	})
	s.mux.HandleFunc("/mods/demo/downloads/start/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><a href="/files/example.pk3">mirror</a></body></html>`)
	})
	s.mux.HandleFunc("/files/example.pk3", func(w http.ResponseWriter, r *http.Request) {
		s.payloadHits.Add(1)
		w.Write(s.payloadBytes)
	})
	return s
}

func (s *fakeSite) url(p string) string { return s.srv.URL + p }

func newResolver() *Resolver {
	return &Resolver{Client: fetch.New(10 * time.Second)}
}

func TestFindDownloadsPage(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	got, err := newResolver().FindDownloadsPage(context.Background(), site.url("/mods/demo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != site.url("/mods/demo/downloads") {
		t.Errorf("got %q", got)
	}
}

func TestFindDownloadsPageFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/elsewhere">nothing relevant</a></body></html>`)
	}))
	defer srv.Close()

	root := srv.URL + "/mods/other/"
	got, err := newResolver().FindDownloadsPage(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != srv.URL+"/mods/other/downloads" {
		t.Errorf("fallback = %q", got)
	}
}

func TestNewestFilePagePicksTopmostSkipsUpload(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	got, err := newResolver().NewestFilePage(context.Background(), site.url("/mods/demo/downloads"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != site.url("/mods/demo/downloads/42") {
		t.Errorf("got %q", got)
	}
}

func TestNewestFilePageEmptyIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/mods/demo/downloads/upload">Add file</a></body></html>`)
	}))
	defer srv.Close()

	_, err := newResolver().NewestFilePage(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}
}

func TestParseFilePage(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	info, err := newResolver().ParseFilePage(context.Background(), site.url("/mods/demo/downloads/42"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.MD5 != helloMD5 {
		t.Errorf("md5 = %q", info.MD5)
	}
	if info.SuggestedName != "example.pk3" {
		t.Errorf("suggested name = %q", info.SuggestedName)
	}
	if info.StartURL != site.url("/mods/demo/downloads/start/42") {
		t.Errorf("start url = %q", info.StartURL)
	}
}

func TestParseFilePageWithoutStartLink(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>MD5 Hash 5d41402abc4b2a76b9719d911017c592</p></body></html>`)
	}))
	defer srv.Close()

	_, err := newResolver().ParseFilePage(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoStartLink) {
		t.Errorf("expected ErrNoStartLink, got %v", err)
	}
}

func TestResolveMirrorEmptyPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>redirecting...</p></body></html>`)
	}))
	defer srv.Close()

	_, err := newResolver().ResolveMirror(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoMirror) {
		t.Errorf("expected ErrNoMirror, got %v", err)
	}
}

func TestEnsurePayloadEndToEnd(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	modsDir := t.TempDir()

	payload, err := newResolver().EnsurePayload(context.Background(), site.url("/mods/demo"), modsDir, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Path != filepath.Join(modsDir, "example.pk3") {
		t.Errorf("path = %q", payload.Path)
	}
	if !payload.Verified || !payload.Downloaded {
		t.Errorf("flags = %+v", payload)
	}
	body, err := os.ReadFile(payload.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello" {
		t.Errorf("payload body = %q", body)
	}
	if got := site.payloadHits.Load(); got != 1 {
		t.Errorf("payload fetched %d times, want 1", got)
	}
}

func TestEnsurePayloadIsIdempotent(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	modsDir := t.TempDir()
	r := newResolver()
	ctx := context.Background()

	if _, err := r.EnsurePayload(ctx, site.url("/mods/demo"), modsDir, false, nil); err != nil {
		t.Fatal(err)
	}
	second, err := r.EnsurePayload(ctx, site.url("/mods/demo"), modsDir, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Downloaded {
		t.Error("second run re-downloaded an unchanged payload")
	}
	if got := site.payloadHits.Load(); got != 1 {
		t.Errorf("payload fetched %d times across two runs, want 1", got)
	}
}

func TestEnsurePayloadForceRedownloads(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	modsDir := t.TempDir()
	r := newResolver()
	ctx := context.Background()

	if _, err := r.EnsurePayload(ctx, site.url("/mods/demo"), modsDir, false, nil); err != nil {
		t.Fatal(err)
	}
	forced, err := r.EnsurePayload(ctx, site.url("/mods/demo"), modsDir, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !forced.Downloaded {
		t.Error("forced run did not download")
	}
	if got := site.payloadHits.Load(); got != 2 {
		t.Errorf("payload fetched %d times, want 2", got)
	}
}

func TestEnsurePayloadRejectsCorruptStream(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	site.payloadBytes = []byte("tampered") // digest on the file page still says "hello"
	modsDir := t.TempDir()

	_, err := newResolver().EnsurePayload(context.Background(), site.url("/mods/demo"), modsDir, false, nil)
	if !errors.Is(err, download.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(modsDir, "example.pk3")); !os.IsNotExist(statErr) {
		t.Error("corrupt payload left in mods dir")
	}
}

func TestEnsurePayloadRefetchesWhenLocalFileRots(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	modsDir := t.TempDir()
	r := newResolver()
	ctx := context.Background()

	if _, err := r.EnsurePayload(ctx, site.url("/mods/demo"), modsDir, false, nil); err != nil {
		t.Fatal(err)
	}
	// Corrupt the cached copy; the published digest no longer matches.
	if err := os.WriteFile(filepath.Join(modsDir, "example.pk3"), []byte("rotten"), 0644); err != nil {
		t.Fatal(err)
	}
	payload, err := r.EnsurePayload(ctx, site.url("/mods/demo"), modsDir, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !payload.Downloaded {
		t.Error("stale local file was not re-fetched")
	}
	body, _ := os.ReadFile(payload.Path)
	if string(body) != "hello" {
		t.Errorf("payload body = %q after repair", body)
	}
}
