package vaultfs

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RootPath is the path of the root folder
const RootPath = "/"

// CleanPath normalizes p to NFC and checks the object path grammar:
// absolute, at least 2 characters, no empty segments, no trailing slash,
// no "." or ".." segments and no NUL bytes.
func CleanPath(p string) (string, error) {
	p = norm.NFC.String(p)
	if err := validatePath(p); err != nil {
		return "", err
	}
	return p, nil
}

// cleanFolderPath is CleanPath that also accepts the root folder
func cleanFolderPath(p string) (string, error) {
	if p == RootPath {
		return p, nil
	}
	return CleanPath(p)
}

func validatePath(p string) error {
	switch {
	case len(p) < 2:
		return pathError(p, "path is too short")
	case p[0] != '/':
		return pathError(p, "path must be absolute")
	case strings.HasSuffix(p, "/"):
		return pathError(p, "path cannot end with a slash")
	case strings.Contains(p, "//"):
		return pathError(p, "path cannot contain empty segments")
	case strings.IndexByte(p, 0) >= 0:
		return pathError(p, "path cannot contain NUL")
	}
	for _, seg := range pathSegments(p) {
		if seg == "." || seg == ".." {
			return pathError(p, "path cannot contain relative segments")
		}
	}
	return nil
}

func pathError(p, message string) error {
	return &ValidationError{Field: "path", Value: p, Message: message, Err: ErrInvalidPath}
}

// pathSegments splits a clean path into its names; the root has none
func pathSegments(p string) []string {
	if p == RootPath {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// splitPath returns the parent folder and base name of a clean path
func splitPath(p string) (parent, base string) {
	i := strings.LastIndexByte(p, '/')
	if i == 0 {
		return RootPath, p[1:]
	}
	return p[:i], p[i+1:]
}

// joinPath appends name to a clean folder path
func joinPath(dir, name string) string {
	if dir == RootPath {
		return RootPath + name
	}
	return dir + "/" + name
}

// isWithin reports whether p equals dir or lies below it
func isWithin(p, dir string) bool {
	if dir == RootPath {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
