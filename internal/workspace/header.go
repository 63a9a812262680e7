package workspace

import (
	"path/filepath"
	"strings"
)

// commentStyles maps file extensions to line comment prefixes, or to a
// block comment pair separated by a space.
var commentStyles = map[string]string{
	".go": "//", ".js": "//", ".ts": "//", ".tsx": "//", ".jsx": "//", ".java": "//",
	".c": "//", ".h": "//", ".cpp": "//", ".cs": "//", ".rs": "//", ".kt": "//", ".swift": "//",
	".py": "#", ".sh": "#", ".rb": "#", ".yaml": "#", ".yml": "#", ".toml": "#", ".tf": "#",
	".sql": "--", ".lua": "--",
	".md": "<!-- -->", ".html": "<!-- -->", ".xml": "<!-- -->",
	".css": "/* */",
}

// LicenseHeader returns header text commented for path's language, or "" when
// the extension is unknown or header is empty.
func LicenseHeader(path, header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	style, ok := commentStyles[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return ""
	}

	if open, closing, block := strings.Cut(style, " "); block {
		return open + " " + header + " " + closing + "\n"
	}

	var b strings.Builder
	for _, line := range strings.Split(header, "\n") {
		b.WriteString(style)
		if line != "" {
			b.WriteString(" ")
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WithHeader prefixes content with the commented header unless it already
// starts with it.
func WithHeader(path, header, content string) string {
	h := LicenseHeader(path, header)
	if h == "" || strings.HasPrefix(content, h) {
		return content
	}
	return h + "\n" + content
}
