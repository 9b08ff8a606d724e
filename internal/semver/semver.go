package semver

import (
	"cmp"
	"fmt"
	"sort"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a semantic version.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3.
type Version struct {
	v *mm.Version
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

func (v Version) IsPrerelease() bool {
	return v.v != nil && v.v.Prerelease() != ""
}

// Compare compares a and b using Masterminds precedence, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// Precedence compares a and b the way published registry versions are ranked:
// major.minor.patch numerically, then a prerelease before its release, then
// two prereleases by tag text and finally by the tag's numeric suffix
// ("beta.2" < "beta.11"). Build metadata is ignored.
func Precedence(a, b Version) int {
	if a.v == nil || b.v == nil {
		return Compare(a, b)
	}
	if c := cmp.Compare(a.v.Major(), b.v.Major()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.v.Minor(), b.v.Minor()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.v.Patch(), b.v.Patch()); c != 0 {
		return c
	}

	pa, pb := a.v.Prerelease(), b.v.Prerelease()
	switch {
	case pa == "" && pb == "":
		return 0
	case pa == "":
		return 1
	case pb == "":
		return -1
	}

	ta, na := splitPrerelease(pa)
	tb, nb := splitPrerelease(pb)
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	if c := cmp.Compare(na, nb); c != 0 {
		return c
	}
	return strings.Compare(pa, pb)
}

// splitPrerelease separates a prerelease tag into its text and trailing
// number. A tag without a numeric suffix reports -1 so "rc" < "rc.0".
func splitPrerelease(pre string) (string, int64) {
	i := len(pre)
	for i > 0 && pre[i-1] >= '0' && pre[i-1] <= '9' {
		i--
	}
	if i == len(pre) {
		return pre, -1
	}
	n, err := strconv.ParseInt(pre[i:], 10, 64)
	if err != nil {
		return pre, -1
	}
	return strings.TrimRight(pre[:i], ".-"), n
}

// Equal reports whether two raw version strings name the same release.
// Strings that do not parse are compared verbatim.
func Equal(a, b string) bool {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return Precedence(va, vb) == 0
}

// Sort returns a copy of raw ordered ascending by Precedence.
//
// Strings that do not parse as versions sort before every valid version, in
// lexical order, so nothing the registry reports is dropped.
func Sort(raw []string) []string {
	type entry struct {
		raw   string
		v     Version
		valid bool
	}
	entries := make([]entry, 0, len(raw))
	for _, r := range raw {
		v, err := ParseVersion(r)
		entries = append(entries, entry{raw: r, v: v, valid: err == nil})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.valid != b.valid {
			return !a.valid
		}
		if !a.valid {
			return a.raw < b.raw
		}
		return Precedence(a.v, b.v) < 0
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}
