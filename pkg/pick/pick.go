// Package pick implements the "best candidate by name" heuristic shared by
// IWAD selection and archive member selection. Lower rank wins; ties break
// by shortest name.
package pick

import (
	"path"
	"strings"
)

// Rank assigns a candidate its priority tier. Lower is better.
type Rank func(name string) int

// Key is the full sort key: tier first, then name length.
type Key struct {
	Tier int
	Len  int
}

func (k Key) Less(other Key) bool {
	if k.Tier != other.Tier {
		return k.Tier < other.Tier
	}
	return k.Len < other.Len
}

// Best returns the candidate with the minimum (tier, len) key, or "" with
// ok=false on empty input. It never fails.
func Best(candidates []string, rank Rank) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	bestKey := Key{Tier: rank(best), Len: len(best)}
	for _, c := range candidates[1:] {
		k := Key{Tier: rank(c), Len: len(c)}
		if k.Less(bestKey) {
			best, bestKey = c, k
		}
	}
	return best, true
}

// wadTiers ranks known IWAD filenames, matched case-insensitively on the
// exact base name. Commercial doom2.wad beats the Freedoom family.
var wadTiers = map[string]int{
	"doom2.wad":     0,
	"freedoom2.wad": 1,
	"freedoom1.wad": 2,
	"freedm.wad":    3,
}

const wadTierOther = 9

// WADRank ranks a WAD file path for IWAD selection.
func WADRank(name string) int {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if tier, ok := wadTiers[base]; ok {
		return tier
	}
	return wadTierOther
}

// memberExts ranks archive member extensions, in preference order.
var memberExts = []string{".pk3", ".pk7", ".wad"}

const memberTierOther = 99

// MemberRank ranks an archive member name for payload selection.
func MemberRank(name string) int {
	lower := strings.ToLower(name)
	for i, ext := range memberExts {
		if strings.HasSuffix(lower, ext) {
			return i
		}
	}
	return memberTierOther
}

// IsPreferredMember reports whether the member name carries one of the
// payload extensions at all.
func IsPreferredMember(name string) bool {
	return MemberRank(name) != memberTierOther
}
