// Package auth guards the target API with the shared replication secret.
package auth

import (
	"path"
	"strings"
)

// IsPublicPath reports whether a request path bypasses authentication.
// Paths with encoded separators never match, the path is cleaned before
// comparing, and matching respects segment boundaries so /health matches
// /health/live but not /healthz.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lowerPath := strings.ToLower(requestPath)
	if strings.Contains(lowerPath, "%2f") || strings.Contains(lowerPath, "%2e") {
		return false
	}

	cleanPath := path.Clean("/" + requestPath)

	for _, publicPath := range publicPaths {
		cleanPublicPath := path.Clean("/" + publicPath)
		if cleanPublicPath == "/" {
			return true
		}
		if cleanPath == cleanPublicPath || strings.HasPrefix(cleanPath, cleanPublicPath+"/") {
			return true
		}
	}
	return false
}
