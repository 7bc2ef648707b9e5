package fsops

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// StagingDir creates a uniquely named directory under parent. Staging
// directories live next to their final location so a rename stays on one
// filesystem.
func StagingDir(fs afero.Fs, parent, prefix string) (string, error) {
	if err := EnsureDir(fs, parent, 0755); err != nil {
		return "", err
	}
	dir, err := afero.TempDir(fs, parent, prefix)
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}

// CheckWritable checks if a path is writable
func CheckWritable(fs afero.Fs, path string) error {
	testFile := filepath.Join(path, ".write_test")
	f, err := fs.Create(testFile)
	if err != nil {
		return fmt.Errorf("path not writable: %w", err)
	}
	f.Close()
	fs.Remove(testFile)
	return nil
}

// EnsureDir ensures a directory exists with the given permissions
func EnsureDir(fs afero.Fs, path string, perm os.FileMode) error {
	if err := fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return nil
}

// Exists checks if a path exists
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func IsDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// NearestExisting walks up from path until it finds something that exists.
// Used to stat free space for directories that are not created yet.
func NearestExisting(fs afero.Fs, path string) string {
	p := filepath.Clean(path)
	for {
		if Exists(fs, p) {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// CopyFile streams src to dst, replacing dst. The file is written to a
// temporary name first and renamed into place once complete.
func CopyFile(fs afero.Fs, src, dst string) (err error) {
	srcFile, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	tmp := dst + ".part"
	dstFile, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if err != nil {
			fs.Remove(tmp)
		}
	}()

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return fmt.Errorf("copy contents: %w", err)
	}
	if err = dstFile.Sync(); err != nil {
		dstFile.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err = dstFile.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	if err = fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename destination: %w", err)
	}
	return nil
}

// HashFile returns the lowercase hex SHA-256 digest of a file
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RemoveContents deletes every entry inside dir but keeps dir itself.
// A missing dir is not an error. Returns the number of entries removed.
func RemoveContents(fs afero.Fs, dir string) (int, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := fs.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
