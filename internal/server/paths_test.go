package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckPaths(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	link := filepath.Join(root, "elsewhere")
	if err := os.Symlink(other, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	tests := []struct {
		name string
		dirs []string
		path string
		ok   bool
	}{
		{"no restriction", nil, "/etc/passwd", true},
		{"no restriction stdin", nil, "-", true},
		{"inside", []string{root}, filepath.Join(root, "a.csv"), true},
		{"nested new file", []string{root}, filepath.Join(root, "sub", "a.csv"), true},
		{"root itself", []string{root}, root, true},
		{"second dir", []string{other, root}, filepath.Join(root, "a.csv"), true},
		{"outside", []string{root}, filepath.Join(other, "a.csv"), false},
		{"dot dot", []string{root}, filepath.Join(root, "..", "a.csv"), false},
		{"sibling prefix", []string{root}, root + "x/a.csv", false},
		{"symlink out", []string{root}, filepath.Join(link, "a.csv"), false},
		{"stdin", []string{root}, "-", false},
		{"empty", []string{root}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPaths(tt.dirs, tt.path)
			if tt.ok && err != nil {
				t.Errorf("checkPaths(%q) error = %v", tt.path, err)
			}
			if !tt.ok && !errors.Is(err, errForbiddenPath) {
				t.Errorf("checkPaths(%q) error = %v, want forbidden", tt.path, err)
			}
		})
	}
}
