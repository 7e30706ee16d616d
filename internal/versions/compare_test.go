package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		newVersion string
		oldVersion string
		expected   bool
	}{
		{name: "newer minor version", newVersion: "1.2.0", oldVersion: "1.1.0", expected: true},
		{name: "older patch version", newVersion: "1.0.1", oldVersion: "1.0.2", expected: false},
		{name: "equal versions", newVersion: "1.0.0", oldVersion: "1.0.0", expected: false},
		{name: "release vs prerelease", newVersion: "1.0.0", oldVersion: "1.0.0-alpha", expected: true},
		{name: "v prefix", newVersion: "v2.0.0", oldVersion: "1.9.9", expected: true},
		{name: "non-semver falls back to strings", newVersion: "version-b", oldVersion: "version-a", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsNewerVersion(tt.newVersion, tt.oldVersion))
		})
	}
}

func TestCheckAPICompatibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		wantErr string
	}{
		{name: "same version", version: APIVersion},
		{name: "newer minor", version: "1.4.2"},
		{name: "next major", version: "2.0.0", wantErr: "does not satisfy"},
		{name: "older major", version: "0.9.0", wantErr: "does not satisfy"},
		{name: "garbage", version: "latest", wantErr: "invalid API version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckAPICompatibility(tt.version)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	info := getVersionInfoWithValues("v1.2.3", "abcdef0123456789", "2026-01-02T03:04:05Z")
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "abcdef0123456789", info.Commit)
	assert.Equal(t, "2026-01-02 03:04:05 UTC", info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")

	dev := getVersionInfoWithValues("dev", "abcdef0123456789", unknownStr)
	assert.Equal(t, "build-abcdef01", dev.Version)
}
