package semver

import (
	"strconv"
	"strings"
)

// Version is a loosely parsed dotted version, as found in release tags
// like "v1.2.3", "game-0.3.1" or "launcher-r12".
type Version struct {
	Original string // Original string (e.g., "game-0.3.1")
	Parts    []int  // Parsed numeric parts [0, 3, 1]
}

// Parse parses a version string into a Version. Any non-numeric prefix up to
// the first digit is ignored, so release tag prefixes compare naturally.
func Parse(v string) Version {
	original := v

	if i := strings.IndexFunc(v, func(r rune) bool { return r >= '0' && r <= '9' }); i > 0 {
		v = v[i:]
	}

	parts := strings.Split(v, ".")
	var nums []int
	for _, part := range parts {
		// Numeric prefix of the part only ("3-beta" -> 3).
		numPart := ""
		for _, r := range part {
			if r >= '0' && r <= '9' {
				numPart += string(r)
			} else {
				break
			}
		}
		if numPart == "" {
			nums = append(nums, 0)
		} else {
			n, _ := strconv.Atoi(numPart)
			nums = append(nums, n)
		}
	}

	return Version{
		Original: original,
		Parts:    nums,
	}
}

// String returns the original version string
func (v Version) String() string {
	return v.Original
}

// Compare compares two versions numerically, part by part. Missing parts
// count as zero. Returns -1 if v < other, 0 if equal, 1 if v > other.
func (v Version) Compare(other Version) int {
	maxLen := len(v.Parts)
	if len(other.Parts) > maxLen {
		maxLen = len(other.Parts)
	}

	for i := 0; i < maxLen; i++ {
		vPart := 0
		otherPart := 0

		if i < len(v.Parts) {
			vPart = v.Parts[i]
		}
		if i < len(other.Parts) {
			otherPart = other.Parts[i]
		}

		if vPart < otherPart {
			return -1
		}
		if vPart > otherPart {
			return 1
		}
	}

	return 0
}

// Less returns true if v < other (for sorting)
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal returns true if versions are equal
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}
