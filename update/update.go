// Package update checks GitHub for a newer build and swaps the running
// binary in place. Checks are cached for a day so startup stays quiet.
package update

import (
	"strings"

	"golang.org/x/mod/semver"
)

const (
	Repo       = "sotto-voice/sotto"
	BinaryName = "sotto"
)

// Release is one downloadable build discovered on GitHub.
type Release struct {
	Version     string
	AssetURL    string
	ChecksumURL string
}

// PageURL is the human release page, for menu items and logs.
func (r Release) PageURL() string {
	return "https://github.com/" + Repo + "/releases/tag/" + r.Version
}

// NewerThan reports whether the release supersedes current. Prerelease and
// build suffixes are dropped before comparing, so a v0.1.5-dirty dev build
// does not see v0.1.5 as an upgrade. Unparseable versions compare as not
// newer.
func (r Release) NewerThan(current string) bool {
	cur, rel := canonical(current), canonical(r.Version)
	if cur == "" || rel == "" {
		return false
	}
	return semver.Compare(rel, cur) > 0
}

// canonical normalizes a tag for comparison: force the "v" prefix, cut
// prerelease and build suffixes, reject what remains invalid.
func canonical(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if i := strings.IndexAny(v, "-+"); i > 0 {
		v = v[:i]
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
