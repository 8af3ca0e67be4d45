package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/swift-fca/swift/internal/fcaerr"
)

// errForbiddenPath marks a job path outside the allowed directories
var errForbiddenPath = errors.New("path outside allowed directories")

// checkPaths confines the given job paths to dirs. Standard streams, named
// by an empty path or "-", are refused once dirs is set.
func checkPaths(dirs []string, paths ...string) error {
	if len(dirs) == 0 {
		return nil
	}
	for _, path := range paths {
		if !within(path, dirs) {
			return fmt.Errorf("%w: %w", errForbiddenPath, fcaerr.NewArgError("path %q is not allowed", path))
		}
	}
	return nil
}

func within(path string, dirs []string) bool {
	if path == "" || path == "-" {
		return false
	}
	target, ok := resolve(path)
	if !ok {
		return false
	}
	for _, dir := range dirs {
		root, ok := resolve(dir)
		if !ok {
			continue
		}
		rel, err := filepath.Rel(root, target)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolve returns the absolute path with symlinks of its longest existing
// prefix evaluated, so a target that does not exist yet still resolves
// through its parent directories.
func resolve(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	var rest []string
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), true
		}
		if filepath.Dir(dir) == dir {
			return abs, true
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
	}
}
