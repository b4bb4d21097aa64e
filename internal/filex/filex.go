// Package filex resolves and creates the on-disk locations of the tool.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// userConfigDir is a test seam for os.UserConfigDir.
var userConfigDir = os.UserConfigDir

// EnsureSubdir creates parent/name with owner-only permissions if needed and
// returns its path.
func EnsureSubdir(parent, name string) (string, error) {
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// DataDir returns the per-user data directory for app, creating it. It
// falls back to the working directory when the platform has no user config
// directory.
func DataDir(app string) (string, error) {
	root, err := userConfigDir()
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
	}
	return EnsureSubdir(root, app)
}
