// Package util provides common utility functions used across the vaulton
// library. These utilities handle string manipulation and other shared
// operations that don't fit into domain-specific packages.
package util

import "strings"

// SafeTruncate safely truncates a string to maxLen characters without panicking.
// Returns the original string if it's shorter than maxLen, otherwise returns
// the first maxLen characters. This prevents index out of bounds errors when
// logging sensitive data like request identifiers, where only a prefix should
// be shown.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeURL normalizes a URL for display by removing trailing slashes.
// Redirect URI matching deliberately does NOT use this; registered redirect
// URIs are compared verbatim.
func NormalizeURL(url string) string {
	return strings.TrimRight(url, "/")
}
