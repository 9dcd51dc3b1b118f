// Package permission evaluates a Credential's optional permission map
// against a requested action (C7). Normalization and the decision table
// are spec.md §4.7.
package permission

import "strings"

const (
	wildcardStar   = "*"
	wildcardAll    = "all"
	wildcardAllAll = "__all__"
)

// Allowed decides whether action is permitted under permissionMap,
// applying spec.md §4.7's normalize-then-first-match-wins table:
//  1. an absent/empty map allows everything;
//  2. an explicit true under a wildcard key allows everything;
//  3. an explicit entry for the normalized action wins;
//  4. an explicit entry for the action's hyphenated variant wins;
//  5. otherwise deny.
func Allowed(permissionMap map[string]bool, action string) bool {
	if len(permissionMap) == 0 {
		return true
	}

	normalized := normalize(action)

	for _, wildcard := range []string{wildcardStar, wildcardAll, wildcardAllAll} {
		if allow, ok := permissionMap[wildcard]; ok && allow {
			return true
		}
	}

	if allow, ok := permissionMap[normalized]; ok {
		return allow
	}

	hyphenated := strings.ReplaceAll(normalized, "_", "-")
	if allow, ok := permissionMap[hyphenated]; ok {
		return allow
	}

	return false
}

// normalize applies spec.md §4.7's key normalization: trim, lower-case,
// replace '-' with '_'.
func normalize(action string) string {
	action = strings.TrimSpace(action)
	action = strings.ToLower(action)
	return strings.ReplaceAll(action, "-", "_")
}
