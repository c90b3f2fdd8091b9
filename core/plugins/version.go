package plugins

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrIncompatibleVersion is returned when a format's version requirements are not met.
var ErrIncompatibleVersion = errors.New("incompatible format version")

// HostVersion is the version of the conversion host.
const HostVersion = "0.3.0"

// Version represents a semantic version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a semantic version string (e.g., "1.2.3"). Missing
// minor and patch components default to zero.
func ParseVersion(v string) (*Version, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil, fmt.Errorf("version string is empty")
	}

	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return nil, fmt.Errorf("invalid version format: %s (expected X.Y.Z)", v)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version component %q in %s", p, v)
		}
		nums[i] = n
	}
	return &Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns the string representation of the version.
func (v *Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsCompatibleWith checks if this version satisfies required: the major
// version must match and the minor version must be at least the required one.
func (v *Version) IsCompatibleWith(required *Version) bool {
	return v.Major == required.Major && v.Minor >= required.Minor
}

// CheckFormatCompatibility checks a format's MinHostVersion against hostVersion.
func CheckFormatCompatibility(f *Format, hostVersion string) error {
	if f.MinHostVersion == "" {
		return nil
	}

	host, err := ParseVersion(hostVersion)
	if err != nil {
		return fmt.Errorf("invalid host version %q: %w", hostVersion, err)
	}

	minRequired, err := ParseVersion(f.MinHostVersion)
	if err != nil {
		return fmt.Errorf("invalid min host version %q in format %s: %w", f.MinHostVersion, f.Name, err)
	}

	if !host.IsCompatibleWith(minRequired) {
		return fmt.Errorf("%w: format %s requires host version %s, but current version is %s",
			ErrIncompatibleVersion, f.Name, minRequired.String(), host.String())
	}
	return nil
}
