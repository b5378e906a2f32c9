// Package manifest reads and writes the distribution manifest. The manifest
// is a manifest.json committed to the dist repo; the launcher and the
// entrypoint consume it, the deploy commands produce it.
package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// Artifact describes one downloadable build artifact.
type Artifact struct {
	URL       string `json:"url"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Filename  string `json:"filename,omitempty"`
}

// GameBuild is one released game package.
type GameBuild struct {
	Version     string   `json:"version"`
	Label       string   `json:"label"`
	Channel     string   `json:"channel"`
	Recommended bool     `json:"recommended"`
	Windows     Artifact `json:"windows"`
	Changelog   string   `json:"changelog"`
}

// Launcher describes the current launcher release.
type Launcher struct {
	Version string   `json:"version"`
	Windows Artifact `json:"windows"`
	Notes   string   `json:"notes,omitempty"`
}

// Manifest is the full document. Builds are kept in deploy order, newest
// last.
type Manifest struct {
	Launcher   *Launcher   `json:"launcher,omitempty"`
	GameBuilds []GameBuild `json:"game_builds"`
}

// Load reads and validates path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes data, rejecting documents the schema does not accept.
func Parse(data []byte) (*Manifest, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// Validate checks data against the embedded schema.
func Validate(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate manifest: %w", err)
	}
	if !result.Valid() {
		var errs strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&errs, "- %s\n", desc)
		}
		return fmt.Errorf("manifest validation failed:\n%s", errs.String())
	}
	return nil
}

// Save writes m to path, 2-space indented with a trailing newline so git
// diffs on the dist repo stay readable.
func Save(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := Validate(data); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// UpsertGameBuild replaces the build with the same version or appends.
func (m *Manifest) UpsertGameBuild(b GameBuild) {
	for i := range m.GameBuilds {
		if m.GameBuilds[i].Version == b.Version {
			m.GameBuilds[i] = b
			return
		}
	}
	m.GameBuilds = append(m.GameBuilds, b)
}

// CurrentGameVersion returns the version of the most recently deployed
// build, or "0.0.0" when none exist.
func (m *Manifest) CurrentGameVersion() string {
	if len(m.GameBuilds) == 0 {
		return "0.0.0"
	}
	return m.GameBuilds[len(m.GameBuilds)-1].Version
}

// LauncherRevision returns the launcher version as an integer revision
// counter. Missing sections and non-numeric versions count as revision 0.
func (m *Manifest) LauncherRevision() int {
	if m.Launcher == nil {
		return 0
	}
	rev, err := strconv.Atoi(m.Launcher.Version)
	if err != nil {
		return 0
	}
	return rev
}
