package common

import (
	"path/filepath"
	"regexp"
	"strings"
)

// jobIDPattern is the only shape accepted for job and run identifiers.
// Applied at every API boundary that takes an ID as a path parameter.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,200}$`)

// ValidateJobID rejects identifiers containing anything outside
// [A-Za-z0-9_-] or longer than 200 characters.
func ValidateJobID(id string) error {
	if !jobIDPattern.MatchString(id) {
		return ErrInvalidInput("invalid job id")
	}
	return nil
}

// ValidatePath resolves p against root and returns the absolute path.
// Rejects any path containing a ".." segment pre-resolution, and any
// resolved path that escapes root.
func ValidatePath(root, p string) (string, error) {
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return "", ErrInvalidInput("path traversal rejected")
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", ErrInvalidInput("invalid root path")
	}
	resolved := filepath.Clean(filepath.Join(absRoot, p))
	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", ErrInvalidInput("path escapes root")
	}
	return resolved, nil
}
