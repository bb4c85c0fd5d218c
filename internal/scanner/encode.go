package scanner

import "strings"

// EncodeProjectPath is the canonical path-encoding rule from spec.md
// §4.7/§6: every "/" becomes "-", including the leading one. This mirrors
// the vendor CLI's own per-project transcript directory naming.
func EncodeProjectPath(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}

// DecodeProjectPathNaive reverses EncodeProjectPath by the naive rule.
// Lossy/ambiguous when directory names contain dashes (spec.md §4.7, §9
// Open Question (d)) — callers that need the true path must prefer a
// sidecar originalPath field when present instead of this function.
func DecodeProjectPathNaive(encoded string) string {
	return strings.ReplaceAll(encoded, "-", "/")
}
