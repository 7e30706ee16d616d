package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CompatibleAPIVersions is the constraint a target's API version has to satisfy
const CompatibleAPIVersions = ">= 1.0.0, < 2.0.0"

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// It uses semantic versioning for comparison when both strings are valid semver,
// and falls back to lexicographic string comparison otherwise.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// CheckAPICompatibility returns an error unless the version reported by a
// target satisfies CompatibleAPIVersions
func CheckAPICompatibility(remoteVersion string) error {
	constraint, err := semver.NewConstraint(CompatibleAPIVersions)
	if err != nil {
		return fmt.Errorf("invalid compatibility constraint: %w", err)
	}
	version, err := semver.NewVersion(remoteVersion)
	if err != nil {
		return fmt.Errorf("target reported an invalid API version %q: %w", remoteVersion, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("target API version %s does not satisfy %s", remoteVersion, CompatibleAPIVersions)
	}
	return nil
}
