package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModURL == "" {
		t.Error("default mod_url missing")
	}
	if cfg.Engine.Repo != "ZDoom/gzdoom" {
		t.Errorf("engine repo = %q", cfg.Engine.Repo)
	}
	if !strings.HasSuffix(cfg.Paths.Mods, filepath.Join("doomstrap", "mods")) {
		t.Errorf("mods dir not derived from root: %q", cfg.Paths.Mods)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mod_url = "https://example.invalid/mods/demo"

[paths]
root = "` + dir + `"
mods = "` + filepath.Join(dir, "elsewhere") + `"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModURL != "https://example.invalid/mods/demo" {
		t.Errorf("mod_url = %q", cfg.ModURL)
	}
	if cfg.Paths.Mods != filepath.Join(dir, "elsewhere") {
		t.Errorf("mods override lost: %q", cfg.Paths.Mods)
	}
	// Unset fields still derive from the overridden root.
	if cfg.Paths.IWADs != filepath.Join(dir, "iwads") {
		t.Errorf("iwads dir = %q", cfg.Paths.IWADs)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	t.Setenv("DOOMSTRAP_TEST_DIR", "/tmp/d")
	if got := ExpandPath("$DOOMSTRAP_TEST_DIR/y"); got != "/tmp/d/y" {
		t.Errorf("ExpandPath with env = %q", got)
	}
}
