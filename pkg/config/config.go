package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Paths holds every directory the launcher writes to. All of them live under
// Root unless overridden, so a portable install stays in one tree.
type Paths struct {
	Root      string `toml:"root"`
	Bin       string `toml:"bin"`
	IWADs     string `toml:"iwads"`
	Mods      string `toml:"mods"`
	Saves     string `toml:"saves"`
	EngineINI string `toml:"engine_ini"`
	Journal   string `toml:"journal"`
}

// Engine configures where the game engine comes from.
type Engine struct {
	Repo          string   `toml:"repo"`
	AssetTokens   []string `toml:"asset_tokens"`
	AppImageIndex string   `toml:"appimage_index"`
}

// IWAD configures the fallback IWAD source.
type IWAD struct {
	Repo string `toml:"repo"`
}

// Dist configures the release host used by deploy and bootstrap.
type Dist struct {
	Repo          string `toml:"repo"`
	Checkout      string `toml:"checkout"`
	LauncherAsset string `toml:"launcher_asset"`
}

type Config struct {
	ModURL string `toml:"mod_url"`
	Paths  Paths  `toml:"paths"`
	Engine Engine `toml:"engine"`
	IWAD   IWAD   `toml:"iwad"`
	Dist   Dist   `toml:"dist"`
}

// Default returns the built-in configuration, rooted at
// ~/.local/share/doomstrap.
func Default() *Config {
	return &Config{
		ModURL: "https://www.moddb.com/mods/maximum-security",
		Paths: Paths{
			Root: "~/.local/share/doomstrap",
		},
		Engine: Engine{
			Repo:          "ZDoom/gzdoom",
			AssetTokens:   []string{"windows", ".zip"},
			AppImageIndex: "https://zdoom.org/files/gzdoom/bin/",
		},
		IWAD: IWAD{
			Repo: "freedoom/freedoom",
		},
		Dist: Dist{
			Repo:          "arikdcode/maximum_security_dist",
			Checkout:      "~/.local/share/doomstrap/dist",
			LauncherAsset: "DoomstrapLauncher.exe",
		},
	}
}

// DefaultPath returns ~/.config/doomstrap/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "doomstrap", "config.toml"), nil
}

// Load reads the config file at path, layered over Default. A missing file
// is not an error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	out := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		out.finalize()
		return out, nil
	}
	if _, err := toml.DecodeFile(path, out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	out.finalize()
	return out, nil
}

// finalize expands tildes and fills path fields that derive from Root.
func (c *Config) finalize() {
	c.Paths.Root = ExpandPath(c.Paths.Root)
	c.Dist.Checkout = ExpandPath(c.Dist.Checkout)

	fill := func(field *string, rel ...string) {
		if *field == "" {
			*field = filepath.Join(append([]string{c.Paths.Root}, rel...)...)
		} else {
			*field = ExpandPath(*field)
		}
	}
	fill(&c.Paths.Bin, "bin", "gzdoom")
	fill(&c.Paths.IWADs, "iwads")
	fill(&c.Paths.Mods, "mods")
	fill(&c.Paths.Saves, "saves")
	fill(&c.Paths.EngineINI, "gzdoom-doomstrap.ini")
	fill(&c.Paths.Journal, "journal.db")
}

// ExpandPath expands the tilde (~) to the user's home directory
// and expands environment variables (e.g. $HOME, ${VAR}) in the path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}
