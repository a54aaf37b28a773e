package aggregate

import "regexp"

// Normalization collapses failure messages that differ only in their
// variable parts, so the summary can cluster them. The substitutions are a
// fixed, ordered set: quoted strings first, then path-like tokens, then bare
// numbers, so a filename's digits are swallowed by the path placeholder
// rather than the number one.
var (
	reDoubleQuoted = regexp.MustCompile(`"[^"]*"`)
	reSingleQuoted = regexp.MustCompile(`'[^']*'`)
	rePath         = regexp.MustCompile(`(?:[\w.~-]+/)+[\w.-]+`)
	reFile         = regexp.MustCompile(`\b[\w-]+\.[A-Za-z]{1,5}\b`)
	reHexNumber    = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)
	reNumber       = regexp.MustCompile(`\b\d+`)
)

// NormalizeMessage rewrites a failure message with placeholders for its
// variable parts. It is a pure string transform.
func NormalizeMessage(msg string) string {
	msg = reDoubleQuoted.ReplaceAllString(msg, `<quoted>`)
	msg = reSingleQuoted.ReplaceAllString(msg, `<quoted>`)
	msg = rePath.ReplaceAllString(msg, `<path>`)
	msg = reFile.ReplaceAllString(msg, `<path>`)
	msg = reHexNumber.ReplaceAllString(msg, `<n>`)
	msg = reNumber.ReplaceAllString(msg, `<n>`)
	return msg
}
