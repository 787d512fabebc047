// Package version exposes the running extension version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// MajorMinor returns the version with its last component dropped ("1.0.3" -> "1.0").
// Clients are compatible with any patch release of the same major.minor.
func MajorMinor() string {
	return majorMinor(Get())
}

func majorMinor(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) < 2 {
		return v
	}
	return strings.Join(parts[:len(parts)-1], ".")
}
