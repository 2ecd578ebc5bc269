// Package version compares semantic versions and matches them against the
// range forms plugins use to declare dependencies: exact versions, caret and
// tilde shorthands, and inclusive LOW-HIGH bounds.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Sentinel errors for version and range parsing.
var (
	ErrMalformedVersion = errors.New("malformed semantic version")
	ErrMalformedRange   = errors.New("malformed version range")
)

// Compare compares two semantic version strings numerically by major, then
// minor, then patch. It returns -1 if a < b, 0 if a == b, and +1 if a > b.
// "1.9.0" compares less than "1.10.0".
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Parse parses a semantic version string.
func Parse(s string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}
	return v, nil
}

// RangeKind discriminates the parsed range forms.
type RangeKind int

const (
	// KindExact matches a single version exactly.
	KindExact RangeKind = iota
	// KindCaret matches versions >= base within the same major.
	KindCaret
	// KindTilde matches versions >= base within the same major.minor.
	KindTilde
	// KindBounds matches versions between Low and High inclusive.
	KindBounds
)

// Range is a parsed version range. Parse once with ParseRange, then call
// Matches; this keeps range parsing out of hot comparison paths.
type Range struct {
	Kind RangeKind
	Base *semver.Version // Exact, Caret, Tilde
	Low  *semver.Version // Bounds
	High *semver.Version // Bounds
}

// ParseRange parses one of the supported range forms:
//
//	"1.2.3"        exact match
//	"^1.2.3"       same major, >= 1.2.3
//	"~1.2.3"       same major.minor, >= 1.2.3
//	"1.0.0-2.0.0"  inclusive bounds
//
// A string that fits none of these forms is a caller error.
func ParseRange(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty range", ErrMalformedRange)
	}

	switch {
	case strings.HasPrefix(s, "^"):
		base, err := Parse(s[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRange, s)
		}
		return &Range{Kind: KindCaret, Base: base}, nil

	case strings.HasPrefix(s, "~"):
		base, err := Parse(s[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRange, s)
		}
		return &Range{Kind: KindTilde, Base: base}, nil
	}

	// Bounds form: a hyphen separating two well-formed versions. Tried before
	// the exact form because "1.0.0-rc.1" is a valid version on its own and a
	// lone hyphen is not enough to tell the two apart.
	if low, high, ok := splitBounds(s); ok {
		if low.GreaterThan(high) {
			return nil, fmt.Errorf("%w: %q: lower bound above upper bound", ErrMalformedRange, s)
		}
		return &Range{Kind: KindBounds, Low: low, High: high}, nil
	}

	base, err := Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	return &Range{Kind: KindExact, Base: base}, nil
}

// splitBounds attempts to split s at a hyphen so that both halves parse as
// versions. Returns ok=false when no such split exists.
func splitBounds(s string) (low, high *semver.Version, ok bool) {
	for i := strings.Index(s, "-"); i >= 0; {
		l, errL := semver.StrictNewVersion(strings.TrimSpace(s[:i]))
		h, errH := semver.StrictNewVersion(strings.TrimSpace(s[i+1:]))
		if errL == nil && errH == nil {
			return l, h, true
		}
		next := strings.Index(s[i+1:], "-")
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return nil, nil, false
}

// Matches reports whether v falls inside the range.
func (r *Range) Matches(v *semver.Version) bool {
	switch r.Kind {
	case KindExact:
		return v.Equal(r.Base)
	case KindCaret:
		return v.Major() == r.Base.Major() && !v.LessThan(r.Base)
	case KindTilde:
		return v.Major() == r.Base.Major() && v.Minor() == r.Base.Minor() && !v.LessThan(r.Base)
	case KindBounds:
		return !v.LessThan(r.Low) && !v.GreaterThan(r.High)
	default:
		return false
	}
}

// String returns the canonical textual form of the range.
func (r *Range) String() string {
	switch r.Kind {
	case KindCaret:
		return "^" + r.Base.String()
	case KindTilde:
		return "~" + r.Base.String()
	case KindBounds:
		return r.Low.String() + "-" + r.High.String()
	default:
		return r.Base.String()
	}
}

// IsCompatible reports whether version satisfies the range. Malformed input
// for either argument is returned as an error, never as a silent false.
func IsCompatible(version, rang string) (bool, error) {
	v, err := Parse(version)
	if err != nil {
		return false, err
	}
	r, err := ParseRange(rang)
	if err != nil {
		return false, err
	}
	return r.Matches(v), nil
}
