// Package validators provides validation functions for replicated content identifiers.
package validators

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxNodeNameLength      = 255
	maxWorkspaceNameLength = 200
)

var (
	// Node names are single path segments: alphanumeric start, then dots, underscores and hyphens
	nodeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

	// Workspace names follow the same rules as node names, without dots
	workspaceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

	// Package keys are dot separated, e.g. Acme.SiteA or Vendor.Site.Resources
	packageKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9]+\.([a-zA-Z0-9][a-zA-Z0-9.]*)+$`)
)

// ValidateNodeName validates the last path segment of a node.
// Returns the trimmed name and an error if validation fails.
//
// Examples of valid names:
//   - home
//   - node-6f1c2a
//   - about_us.en
//
// Examples of invalid names:
//   - a/b (contains a path separator)
//   - .hidden (starts with a dot)
//   - ".." and "."
func ValidateNodeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("node name cannot be empty")
	}
	if len(name) > maxNodeNameLength {
		return "", fmt.Errorf("node name exceeds maximum length of %d characters", maxNodeNameLength)
	}
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("node name '%s' must not contain '/'", name)
	}
	if !nodeNamePattern.MatchString(name) {
		return "", fmt.Errorf(
			"node name '%s' is invalid. Name must start with an alphanumeric character, "+
				"and may contain dots, underscores, and hyphens",
			name,
		)
	}
	return name, nil
}

// ValidateWorkspaceName validates a workspace name such as live or user-admin
func ValidateWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("workspace name cannot be empty")
	}
	if len(name) > maxWorkspaceNameLength {
		return "", fmt.Errorf("workspace name exceeds maximum length of %d characters", maxWorkspaceNameLength)
	}
	if !workspaceNamePattern.MatchString(name) {
		return "", fmt.Errorf(
			"workspace name '%s' is invalid. Name must start with an alphanumeric character, "+
				"and may contain underscores and hyphens",
			name,
		)
	}
	return name, nil
}

// ValidatePackageKey validates a site resources package key
func ValidatePackageKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("package key cannot be empty")
	}
	if strings.HasSuffix(key, ".") || strings.Contains(key, "..") || !packageKeyPattern.MatchString(key) {
		return "", fmt.Errorf("package key '%s' is invalid. Expected a dot separated key like 'Vendor.Site'", key)
	}
	return key, nil
}

// IsValidNodeName checks if a node name is valid.
// This is a convenience wrapper around ValidateNodeName for boolean checks.
func IsValidNodeName(name string) bool {
	_, err := ValidateNodeName(name)
	return err == nil
}
