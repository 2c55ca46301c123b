package safeio

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	for _, seg := range strings.Split(filepath.ToSlash(c), "/") {
		if seg == ".." {
			return "", errors.New("path traversal detected")
		}
	}
	// Normalize to forward slashes for cross-platform consistency
	return filepath.ToSlash(c), nil
}

// WriteFileAtomic replaces filename in fs with data. The bytes go to a
// temporary file in the same directory that is then renamed over the target,
// so readers see either the old or the new content. The existing file mode is
// kept when the filesystem reports one.
func WriteFileAtomic(fs billy.Filesystem, filename string, data []byte) error {
	dir := path.Dir(filepath.ToSlash(filename))
	tmp, err := fs.TempFile(dir, ".pbxmend-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	if st, err := fs.Stat(filename); err == nil {
		chmod(fs, tmpName, st.Mode()&0o777) // best-effort permission sync
	}

	if err := fs.Rename(tmpName, filename); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", filename, err)
	}
	return nil
}

// chmod uses billy.Change when the filesystem offers it and falls back to the
// host path for chrooted OS filesystems, which do not.
func chmod(fs billy.Filesystem, name string, mode os.FileMode) {
	if ch, ok := fs.(billy.Change); ok {
		_ = ch.Chmod(name, mode)
		return
	}
	host := filepath.Join(fs.Root(), filepath.FromSlash(name))
	if _, err := os.Stat(host); err == nil {
		_ = os.Chmod(host, mode)
	}
}
