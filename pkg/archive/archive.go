// Package archive decides what file a downloaded payload actually is. Mods
// ship either as a bare .pk3/.wad or inside a ZIP; Unpack normalizes both
// cases to "the file the engine should load".
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"doomstrap/pkg/pick"
)

// Unpack inspects the file at archivePath and returns the path of the
// payload to use:
//
//   - not a ZIP: the input path unchanged, it already is the payload;
//   - ZIP with a preferred member (.pk3 > .pk7 > .wad): only that member is
//     extracted next to the archive and its path returned;
//   - ZIP without any preferred member: everything is extracted next to the
//     archive and the archive path returned, leaving the caller (or user) to
//     locate the payload manually.
func Unpack(archivePath string) (string, error) {
	if !strings.EqualFold(filepath.Ext(archivePath), ".zip") {
		return archivePath, nil
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	destDir := filepath.Dir(archivePath)

	var members []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		members = append(members, f.Name)
	}

	var candidates []string
	for _, m := range members {
		if pick.IsPreferredMember(m) {
			candidates = append(candidates, m)
		}
	}

	best, ok := pick.Best(candidates, pick.MemberRank)
	if !ok {
		for _, f := range r.File {
			if err := extractFile(f, destDir); err != nil {
				return "", err
			}
		}
		return archivePath, nil
	}

	for _, f := range r.File {
		if f.Name == best {
			if err := extractFile(f, destDir); err != nil {
				return "", err
			}
			return filepath.Join(destDir, filepath.FromSlash(best)), nil
		}
	}
	// Unreachable: best came from the member list.
	return "", fmt.Errorf("member %s vanished from %s", best, archivePath)
}

func extractFile(f *zip.File, dest string) error {
	fpath := filepath.Join(dest, filepath.FromSlash(f.Name))

	if !strings.HasPrefix(fpath, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path: %s", fpath)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(fpath, os.ModePerm)
	}

	if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
		return err
	}

	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		outFile.Close()
		return err
	}

	_, err = io.Copy(outFile, rc)

	outFile.Close()
	rc.Close()

	if err != nil {
		return err
	}

	// Restore permissions (especially execute bit)
	if f.Mode()&0111 != 0 {
		os.Chmod(fpath, f.Mode())
	}
	return nil
}

// ExtractAll unpacks every member of the ZIP at src into destDir. Used when
// the whole archive is wanted (engine bundles, IWAD archives).
func ExtractAll(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	for _, f := range r.File {
		if err := extractFile(f, destDir); err != nil {
			return err
		}
	}
	return nil
}
