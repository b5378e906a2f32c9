// Package download streams remote files to disk with atomic renames and
// optional checksum verification. A reader can never observe a partially
// written final file: bytes land in a ".part" sibling first.
package download

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"doomstrap/pkg/fetch"
)

// ErrChecksumMismatch marks a downloaded or cached file whose hash does not
// match the published digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError carries the digests involved in a failed verification.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Progress is invoked after each chunk with the bytes written so far and the
// declared total, 0 when the server sent no Content-Length. Callers must
// treat 0 as "unknown total".
type Progress func(written, total int64)

// Options tune a single download.
type Options struct {
	// MD5 is the expected hex digest of the finished file. Empty skips
	// verification. The mod host publishes MD5, hence the algorithm.
	MD5 string
	// Progress receives chunk-level updates. May be nil.
	Progress Progress
}

const chunkSize = 1 << 20 // 1 MiB

// Fetch streams url into dest. The body is written to dest+".part" and
// renamed over dest only once fully received. When Options.MD5 is set the
// finished file is re-read and verified; on mismatch the freshly written
// file is deleted and a *ChecksumError returned, so a bad download never
// shadows the destination.
func Fetch(ctx context.Context, client *fetch.Client, url, dest string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}

	body, total, err := client.Stream(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(tmp)
				return fmt.Errorf("failed to write %s: %w", tmp, werr)
			}
			written += int64(n)
			if opts.Progress != nil {
				opts.Progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("%w: reading %s: %v", fetch.ErrNetwork, url, readErr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	if opts.MD5 != "" {
		if err := VerifyMD5(dest, opts.MD5); err != nil {
			// The file this call wrote is known bad; do not leave it
			// behind to satisfy the next cache check.
			os.Remove(dest)
			return err
		}
	}
	return nil
}

// VerifyMD5 streams path and compares its MD5 digest against expected
// (case-insensitive hex). Returns *ChecksumError on mismatch.
func VerifyMD5(path, expected string) error {
	actual, err := MD5File(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return &ChecksumError{Path: path, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}

// MD5File returns the hex MD5 digest of the file at path.
func MD5File(path string) (string, error) {
	return hashFile(path, md5.New())
}

// SHA256File returns the hex SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	return hashFile(path, sha256.New())
}

func hashFile(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.CopyBuffer(h, f, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
