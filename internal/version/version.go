package version

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Name is the release name reported with every remote event
const Name = "errcapture"

// Version is the semantic version of errcapture
const Version = "0.3.0"

// Parse parses a version string using hashicorp's go-version library
func Parse(v string) (*version.Version, error) {
	return version.NewVersion(v)
}

// Current returns the current version as a parsed version object
// Panics if Version constant is not a valid semantic version
func Current() *version.Version {
	v, err := Parse(Version)
	if err != nil {
		panic(fmt.Sprintf("invalid version constant %q: %v", Version, err))
	}
	return v
}

// String returns the current version as a string
func String() string {
	return Version
}

// Release returns the release identifier in the "name@version" form the
// error tracker groups releases by
func Release() string {
	return fmt.Sprintf("%s@%s", Name, Current().String())
}

// ParseRelease splits a "name@version" release identifier
func ParseRelease(release string) (string, *version.Version, error) {
	for i := len(release) - 1; i >= 0; i-- {
		if release[i] == '@' {
			v, err := Parse(release[i+1:])
			if err != nil {
				return "", nil, fmt.Errorf("invalid release version %q: %w", release, err)
			}
			return release[:i], v, nil
		}
	}

	return "", nil, fmt.Errorf("no version found in release: %s", release)
}
