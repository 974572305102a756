// ABOUTME: Filename derivation for per-contact documents
// ABOUTME: Current and legacy sanitization schemes plus key helpers
package artifact

import (
	"path"
	"regexp"
	"strings"
)

// DefaultPrefix is where documents live in the bucket.
const DefaultPrefix = "Cards/"

const docExt = ".md"

var unsafeRun = regexp.MustCompile(`[\\/:"*?<>|]+`)

// Sanitize trims name and collapses each run of path-hostile characters into
// a single underscore. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	return unsafeRun.ReplaceAllString(strings.TrimSpace(name), "_")
}

// LegacySanitize reproduces the older naming rule: every character other
// than an ASCII letter or digit becomes an underscore, then the result is
// lower-cased. Characters outside the BMP count twice, as they did for the
// tooling that wrote these files.
func LegacySanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r > 0xFFFF:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Filename is the document filename for a contact name, or "" if the name
// sanitizes to nothing.
func Filename(name string) string {
	s := Sanitize(name)
	if s == "" {
		return ""
	}
	return s + docExt
}

// LegacyFilename is Filename under the legacy scheme.
func LegacyFilename(name string) string {
	s := LegacySanitize(name)
	if s == "" {
		return ""
	}
	return s + docExt
}

// keyFor joins prefix and filename, returning "" for an empty filename.
func keyFor(prefix, filename string) string {
	if filename == "" {
		return ""
	}
	return prefix + filename
}

// baseName is the filename part of a bucket key.
func baseName(key string) string {
	if strings.HasSuffix(key, "/") {
		return ""
	}
	return path.Base(key)
}
