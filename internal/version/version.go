// Package version compares dotted version strings against the bounds a
// manifest declares for a dependency.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/quantmind-br/depctl/internal/core"
)

// ErrMalformedVersion is returned when a version string has an empty or
// non-numeric component.
var ErrMalformedVersion = errors.New("malformed version")

// semverPattern finds the first x.y.z token, with an optional pre-release suffix
var semverPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.]+)?`)

// Tuple is the numeric part of a version, most significant component first
type Tuple []int

// String renders the tuple in dotted form
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, n := range t {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Parse converts a version string to a Tuple. A leading "v" and any
// pre-release ("-...") or build ("+...") suffix are dropped first.
// Components that are not plain integers are returned as 0 together with
// ErrMalformedVersion, so lenient callers may still use the tuple.
func Parse(s string) (Tuple, error) {
	num := numericPart(s)
	if num == "" {
		return Tuple{0}, fmt.Errorf("%w: %q is empty", ErrMalformedVersion, s)
	}

	fields := strings.Split(num, ".")
	tuple := make(Tuple, len(fields))
	var bad []string
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			bad = append(bad, f)
			continue
		}
		tuple[i] = n
	}

	if len(bad) > 0 {
		return tuple, fmt.Errorf("%w: %q has non-numeric components %q", ErrMalformedVersion, s, bad)
	}
	return tuple, nil
}

func numericPart(s string) string {
	s = trimV(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	return s
}

func trimV(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
}

// Compare returns -1, 0 or 1. Missing trailing components count as 0, so
// "1.2" equals "1.2.0".
func Compare(a, b Tuple) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// Satisfies reports whether installed meets every bound in c. Exact, when
// present, is compared literally after trimming a leading "v" and
// short-circuits Min and Max. Unparsable components count as 0, so callers
// should treat the answer for malformed input as advisory.
func Satisfies(installed string, c core.VersionConstraint) bool {
	ok, _ := SatisfiesStrict(installed, c)
	return ok
}

// SatisfiesStrict is Satisfies with parse errors surfaced. The boolean is
// the same lenient answer Satisfies would give.
func SatisfiesStrict(installed string, c core.VersionConstraint) (bool, error) {
	if c.Exact != "" {
		return trimV(strings.TrimSpace(installed)) == trimV(strings.TrimSpace(c.Exact)), nil
	}

	have, parseErr := Parse(installed)
	ok := true

	if c.Min != "" {
		lo, err := Parse(c.Min)
		parseErr = errors.Join(parseErr, err)
		if Compare(have, lo) < 0 {
			ok = false
		}
	}

	if c.Max != "" {
		hi, err := Parse(c.Max)
		parseErr = errors.Join(parseErr, err)
		if Compare(have, hi) > 0 {
			ok = false
		}
	}

	return ok, parseErr
}

// ExtractVersion returns the first semantic version token found in output
func ExtractVersion(output string) (string, bool) {
	v := semverPattern.FindString(output)
	return v, v != ""
}

// FormatRequirement renders c for display: "exactly X", a comma-joined list
// of "X+", "<= X" and "recommended: X", or "any".
func FormatRequirement(c core.VersionConstraint) string {
	if c.Exact != "" {
		return "exactly " + c.Exact
	}

	var parts []string
	if c.Min != "" {
		parts = append(parts, c.Min+"+")
	}
	if c.Max != "" {
		parts = append(parts, "<= "+c.Max)
	}
	if c.Recommended != "" {
		parts = append(parts, "recommended: "+c.Recommended)
	}

	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, ", ")
}
