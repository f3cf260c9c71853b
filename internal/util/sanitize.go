package util

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"go-pharmacy-catalog/pkg/apierror"
)

const maxFilenameRunes = 100

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"|?*#%&{}$!'@+=` + "`" + `]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// SanitizeFilename reduces a client supplied upload name to a single safe
// path segment. Directory components are dropped, so "../../a.png" becomes
// "a.png".
func SanitizeFilename(name string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		normalized = normalized[idx+1:]
	}

	builder := strings.Builder{}
	builder.Grow(len(normalized))
	for _, char := range normalized {
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := invalidFilenameChars.ReplaceAllString(builder.String(), "_")
	cleaned = whitespaceRun.ReplaceAllString(strings.TrimSpace(cleaned), "-")
	cleaned = strings.TrimLeft(cleaned, ".")

	if cleaned == "" {
		return "", apierror.New("INVALID_FILENAME", "filename is invalid after sanitization", name, http.StatusBadRequest)
	}

	// Keep the extension when truncating.
	runes := []rune(cleaned)
	if len(runes) > maxFilenameRunes {
		ext := []rune(extension(cleaned))
		if len(ext) >= maxFilenameRunes {
			ext = nil
		}
		runes = append(runes[:maxFilenameRunes-len(ext)], ext...)
	}

	return string(runes), nil
}

func extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return ""
	}
	return name[idx:]
}

// isInvisibleUnicode reports zero-width and formatting characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F', '\u2060', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Cf, r)
}
