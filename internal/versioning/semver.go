// Package versioning implements the prompt version lifecycle: semantic
// version arithmetic, the mutate-or-create edit policy, and the Store that
// applies a decision while keeping the prompt's current-version pointer
// consistent with its history.
package versioning

import (
	"fmt"
	"strconv"
	"strings"
)

// InitialVersion is the version string of every prompt's seed version, and
// the value a malformed stored version string is normalised to.
const InitialVersion = "1.0.0"

// BumpKind selects which segment of a version string is incremented.
type BumpKind string

const (
	BumpPatch BumpKind = "patch"
	BumpMinor BumpKind = "minor"
	BumpMajor BumpKind = "major"
)

// ParseBumpKind maps a request value to a BumpKind. Anything other than
// "major" or "minor" (including "") is a patch bump.
func ParseBumpKind(s string) BumpKind {
	switch BumpKind(strings.ToLower(strings.TrimSpace(s))) {
	case BumpMajor:
		return BumpMajor
	case BumpMinor:
		return BumpMinor
	default:
		return BumpPatch
	}
}

// SemVer is a parsed MAJOR.MINOR.PATCH triple.
type SemVer struct {
	Major, Minor, Patch int
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Parse splits s on "." and requires exactly three non-negative base-10
// integers. It reports false for anything else.
func Parse(s string) (SemVer, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SemVer{}, false
	}

	var nums [3]int
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return SemVer{}, false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return SemVer{}, false
		}
		nums[i] = n
	}

	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, true
}

// Bump returns the successor of current for the given kind.
//
// A current value that does not Parse is treated as InitialVersion before
// the bump is applied, so Bump("garbage", BumpPatch) is "1.0.1". Bump never
// fails.
func Bump(current string, kind BumpKind) string {
	v, ok := Parse(current)
	if !ok {
		v, _ = Parse(InitialVersion)
	}
	return v.Bump(kind).String()
}

// Bump returns the successor of v for the given kind.
func (v SemVer) Bump(kind BumpKind) SemVer {
	switch kind {
	case BumpMajor:
		return SemVer{Major: v.Major + 1}
	case BumpMinor:
		return SemVer{Major: v.Major, Minor: v.Minor + 1}
	default:
		return SemVer{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}
