package signin

import "strings"

// NormalizeReturnURL enforces the open-redirect guard: only same-origin
// relative paths survive; everything else collapses to home. The second
// result reports whether the input was replaced.
//
// Accepted inputs start with exactly one "/". "//host" and "/\host" are
// scheme-relative escapes in browsers and are rejected, as is anything
// carrying a scheme or host.
func NormalizeReturnURL(raw, home string) (string, bool) {
	if home == "" {
		home = "/"
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return home, false
	}
	if !strings.HasPrefix(raw, "/") {
		return home, true
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return home, true
	}
	// Backslashes anywhere are normalized to "/" by some user agents;
	// refuse rather than guess.
	if strings.Contains(raw, "\\") {
		return home, true
	}
	// A relative path has no room for CR/LF.
	if strings.ContainsAny(raw, "\r\n") {
		return home, true
	}
	return raw, false
}
