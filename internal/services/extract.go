package services

import (
	"regexp"
	"strings"
)

var (
	itemPathRe = regexp.MustCompile(`(?:playlist|show|episode)[/:]([a-zA-Z0-9]+)`)
	bareIDRe   = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// ExtractItemID pulls a Spotify ID out of a share URL, a spotify: URI, or a bare ID.
//
// It reports false when text contains none of these.
func ExtractItemID(text string) (string, bool) {
	if m := itemPathRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if trimmed := strings.TrimSpace(text); bareIDRe.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}
