package debug

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// nestedLocations is the first release whose breakpoint tables nest the
// locations of a multi-location breakpoint (the MI3 format).
var nestedLocations = semver.MustParse("9.1.0")

var bannerVersion = regexp.MustCompile(`^GNU gdb\b.*?\s(\d+\.\d+(?:\.\d+)?)`)

// Dialect describes version-dependent details of the debugger's output.
type Dialect struct {
	Version *semver.Version
}

// DefaultDialect assumes a current debugger.
func DefaultDialect() Dialect {
	return Dialect{}
}

// ParseBanner extracts the version from a banner line such as
// "GNU gdb (GDB) 13.2".
func ParseBanner(line string) (Dialect, error) {
	m := bannerVersion.FindStringSubmatch(line)
	if m == nil {
		return Dialect{}, fmt.Errorf("no version in banner %q", line)
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return Dialect{}, fmt.Errorf("parse version %q: %w", m[1], err)
	}
	return Dialect{Version: v}, nil
}

// IsBanner reports whether line looks like the debugger's version banner.
func IsBanner(line string) bool {
	return bannerVersion.MatchString(line)
}

// NestedLocations reports whether multi-location breakpoints list their
// locations inside the parent tuple. Unknown versions are assumed to.
func (d Dialect) NestedLocations() bool {
	if d.Version == nil {
		return true
	}
	return !d.Version.LessThan(nestedLocations)
}

// Interpreter returns the --interpreter value to launch the debugger with.
func (d Dialect) Interpreter() string {
	if d.NestedLocations() {
		return "mi3"
	}
	return "mi2"
}

func (d Dialect) String() string {
	if d.Version == nil {
		return "unknown"
	}
	return d.Version.String()
}
