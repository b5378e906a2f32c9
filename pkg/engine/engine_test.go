package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"doomstrap/pkg/fetch"
)

func TestArgv(t *testing.T) {
	spec := LaunchSpec{
		Engine:    "/opt/gzdoom",
		IWAD:      "/data/iwads/freedoom2.wad",
		ModFiles:  []string{"/data/mods/a.pk3", "/data/mods/b.wad"},
		SaveDir:   "/data/saves",
		ConfigINI: "/data/gzdoom.ini",
		ExtraArgs: []string{"-skill", "4"},
	}
	got := strings.Join(spec.Argv(), " ")
	want := "/opt/gzdoom -iwad /data/iwads/freedoom2.wad -file /data/mods/a.pk3 -file /data/mods/b.wad -savedir /data/saves -config /data/gzdoom.ini -skill 4"
	if got != want {
		t.Fatalf("argv mismatch\ngot:  %s\nwant: %s", got, want)
	}
}

func TestIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits not meaningful on windows")
	}
	dir := t.TempDir()

	exe := filepath.Join(dir, "gzdoom")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "readme.txt")
	if err := os.WriteFile(plain, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	if !IsExecutable(exe) {
		t.Error("expected executable file to pass")
	}
	if IsExecutable(plain) {
		t.Error("expected plain file to fail")
	}
	if IsExecutable(dir) {
		t.Error("expected directory to fail")
	}
	if IsExecutable(filepath.Join(dir, "missing")) {
		t.Error("expected missing file to fail")
	}
}

func TestWhich(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits not meaningful on windows")
	}
	dir := t.TempDir()
	exe := filepath.Join(dir, "gzdoom")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	got, err := Which("gzdoom")
	if err != nil {
		t.Fatal(err)
	}
	if got != exe {
		t.Errorf("expected %s, got %s", exe, got)
	}

	if _, err := Which("definitely-not-here"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestFindInstalledNested(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits not meaningful on windows")
	}
	dir := t.TempDir()
	nested := filepath.Join(dir, "gzdoom-4.11", "bin")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(nested, "gzdoom")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	if got := findInstalled(dir); got != exe {
		t.Errorf("expected %s, got %s", exe, got)
	}
	if got := findInstalled(t.TempDir()); got != "" {
		t.Errorf("expected empty result for empty dir, got %s", got)
	}
}

func TestLatestAppImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="release-notes.html">notes</a>
			<a href="gzdoom-4.11.3-linux.AppImage">newest</a>
			<a href="gzdoom-4.10.0-linux.AppImage">older</a>
		</body></html>`))
	}))
	defer srv.Close()

	name, dlURL, err := LatestAppImage(context.Background(), fetch.New(0), srv.URL+"/downloads/")
	if err != nil {
		t.Fatal(err)
	}
	if name != "gzdoom-4.11.3-linux.AppImage" {
		t.Errorf("unexpected name %s", name)
	}
	if dlURL != srv.URL+"/downloads/gzdoom-4.11.3-linux.AppImage" {
		t.Errorf("unexpected url %s", dlURL)
	}
}

func TestLatestAppImageEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="notes.html">notes</a></body></html>`))
	}))
	defer srv.Close()

	if _, _, err := LatestAppImage(context.Background(), fetch.New(0), srv.URL); err == nil {
		t.Fatal("expected error for index with no AppImage")
	}
}

func TestEnsureLinuxDownloads(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("linux install path")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.html":
			w.Write([]byte(`<a href="gzdoom-test.AppImage">dl</a>`))
		case "/gzdoom-test.AppImage":
			w.Write([]byte("ELF pretend"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Setenv("PATH", t.TempDir())
	binDir := filepath.Join(t.TempDir(), "bin")
	got, err := Ensure(context.Background(), Options{
		Client:        fetch.New(0),
		AppImageIndex: srv.URL + "/index.html",
		BinDir:        binDir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "gzdoom-test.AppImage" {
		t.Errorf("unexpected path %s", got)
	}
	st, err := os.Stat(got)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode()&0111 == 0 {
		t.Error("downloaded AppImage not marked executable")
	}
}

func TestEnsurePrefersExplicitPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits not meaningful on windows")
	}
	dir := t.TempDir()
	exe := filepath.Join(dir, "my-gzdoom")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Ensure(context.Background(), Options{PreferPath: exe, BinDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if got != exe {
		t.Errorf("expected explicit path %s, got %s", exe, got)
	}
}

func TestMirrorIWAD(t *testing.T) {
	engDir := t.TempDir()
	enginePath := filepath.Join(engDir, "gzdoom")
	if err := os.WriteFile(enginePath, []byte("bin"), 0755); err != nil {
		t.Fatal(err)
	}
	iwad := filepath.Join(t.TempDir(), "freedoom2.wad")
	if err := os.WriteFile(iwad, []byte("IWAD data"), 0644); err != nil {
		t.Fatal(err)
	}

	dst := MirrorIWAD(iwad, enginePath)
	if dst != filepath.Join(engDir, "freedoom2.wad") {
		t.Fatalf("unexpected destination %s", dst)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "IWAD data" {
		t.Errorf("unexpected copy content %q", data)
	}

	// Same size: copy is skipped, bigger source refreshes the mirror.
	if err := os.WriteFile(iwad, []byte("IWAD data v2"), 0644); err != nil {
		t.Fatal(err)
	}
	MirrorIWAD(iwad, enginePath)
	data, _ = os.ReadFile(dst)
	if string(data) != "IWAD data v2" {
		t.Errorf("expected refreshed mirror, got %q", data)
	}
}
