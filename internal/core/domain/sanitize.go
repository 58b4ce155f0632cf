package domain

import "regexp"

// RedactionMarker replaces every credential-bearing fragment in text that
// leaves the gate.
const RedactionMarker = "[REDACTED]"

// Redactions are ordered: embedded-credential connection strings are
// removed whole before the key=value pass, so a partially scrubbed URL can
// never leave the user or host of a secret-bearing DSN behind.
var redactions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s/@]+:[^\s@]+@\S+`), RedactionMarker},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|sslpassword|sslkey|key)\s*=\s*[^\s;&,]+`), "${1}=" + RedactionMarker},
}

// Sanitize scrubs credential material from a message destined for a caller.
// It runs unconditionally on every failure path; no raw driver text reaches
// a caller unfiltered.
func Sanitize(msg string) string {
	for _, r := range redactions {
		msg = r.re.ReplaceAllString(msg, r.repl)
	}
	return msg
}
