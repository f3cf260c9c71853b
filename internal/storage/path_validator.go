package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"go-pharmacy-catalog/pkg/apierror"
)

// PathValidator maps slash-separated upload paths onto the filesystem and
// refuses anything that would land outside the upload root.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// Resolve returns the absolute location of rel. The root itself is not a
// valid target: every upload path names a file below it.
func (v *PathValidator) Resolve(rel string) (string, error) {
	normalized := strings.Trim(strings.ReplaceAll(strings.TrimSpace(rel), `\`, "/"), "/")
	if normalized == "" {
		return "", invalidPath("upload path is empty", rel)
	}

	if hasControlCharacters(normalized) {
		return "", invalidPath("upload path contains invalid characters", rel)
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." || segment == "." {
			return "", apierror.New("PATH_TRAVERSAL", "path traversal attempt detected", rel, http.StatusForbidden)
		}
	}

	resolved := filepath.Join(v.rootAbs, filepath.FromSlash(normalized))
	if !isWithinRoot(v.rootAbs, resolved) || resolved == v.rootAbs {
		return "", apierror.New("PATH_TRAVERSAL", "resolved path is outside upload root", rel, http.StatusForbidden)
	}

	return resolved, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if char == 0 || unicode.IsControl(char) {
			return true
		}
	}
	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return true
	}
	return strings.HasPrefix(candidateAbs, rootAbs+string(filepath.Separator))
}

func invalidPath(message string, rel string) error {
	return apierror.New("INVALID_PATH", message, rel, http.StatusBadRequest)
}
