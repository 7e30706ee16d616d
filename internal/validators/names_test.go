package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNodeName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		nodeName    string
		want        string
		expectError string
	}{
		{name: "simple", nodeName: "home", want: "home"},
		{name: "generated", nodeName: "node-6f1c2a9e-0c1d-4c57-b1b0-3d0a47ab1bd2", want: "node-6f1c2a9e-0c1d-4c57-b1b0-3d0a47ab1bd2"},
		{name: "dots and underscores", nodeName: "about_us.en", want: "about_us.en"},
		{name: "trimmed", nodeName: "  news ", want: "news"},
		{name: "uppercase", nodeName: "Main", want: "Main"},
		{name: "empty", nodeName: "  ", expectError: "cannot be empty"},
		{name: "path separator", nodeName: "a/b", expectError: "must not contain '/'"},
		{name: "dot", nodeName: ".", expectError: "is invalid"},
		{name: "dot dot", nodeName: "..", expectError: "is invalid"},
		{name: "leading dot", nodeName: ".hidden", expectError: "is invalid"},
		{name: "leading hyphen", nodeName: "-x", expectError: "is invalid"},
		{name: "space", nodeName: "a b", expectError: "is invalid"},
		{name: "too long", nodeName: strings.Repeat("a", 256), expectError: "maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateNodeName(tt.nodeName)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				assert.False(t, IsValidNodeName(tt.nodeName))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsValidNodeName(tt.nodeName))
		})
	}
}

func TestValidateWorkspaceName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		workspaceName string
		expectValid   bool
	}{
		{name: "live", workspaceName: "live", expectValid: true},
		{name: "user workspace", workspaceName: "user-admin", expectValid: true},
		{name: "underscore", workspaceName: "review_2", expectValid: true},
		{name: "empty", workspaceName: "", expectValid: false},
		{name: "dot", workspaceName: "user.admin", expectValid: false},
		{name: "slash", workspaceName: "a/b", expectValid: false},
		{name: "too long", workspaceName: strings.Repeat("w", 201), expectValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ValidateWorkspaceName(tt.workspaceName)
			if tt.expectValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidatePackageKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		key         string
		expectValid bool
	}{
		{name: "two parts", key: "Acme.SiteA", expectValid: true},
		{name: "three parts", key: "Acme.Demo.Resources", expectValid: true},
		{name: "digits", key: "Acme2.Site1", expectValid: true},
		{name: "single part", key: "Acme", expectValid: false},
		{name: "trailing dot", key: "Acme.", expectValid: false},
		{name: "double dot", key: "Acme..Site", expectValid: false},
		{name: "hyphen", key: "Acme.Site-A", expectValid: false},
		{name: "empty", key: "", expectValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ValidatePackageKey(tt.key)
			if tt.expectValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
