package services

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}

func isWithin(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// isCriticalPath reports whether path is a system directory or the user's
// home directory itself.
func isCriticalPath(path string) bool {
	path = filepath.Clean(path)
	critical := []string{"/", "/etc", "/usr", "/var", "/bin", "/sbin", "/lib"}
	if home, err := os.UserHomeDir(); err == nil {
		critical = append(critical, home)
	}
	for _, root := range critical {
		if path == filepath.Clean(root) {
			return true
		}
	}
	return false
}

func isPermissionErr(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}

func splitPath(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	value := float64(done) * 100 / float64(total)
	if value > 100 {
		return 100
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
