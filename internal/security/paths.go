package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when an archive entry or link would land
// outside the extraction directory
var ErrUnsafePath = errors.New("unsafe archive path")

// ValidateExtractPath rejects archive entries that are absolute or climb out
// of targetDir once joined to it (zip slip).
func ValidateExtractPath(targetDir, entry string) error {
	if strings.ContainsRune(entry, 0) {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrUnsafePath, entry)
	}

	clean := filepath.Clean(filepath.FromSlash(entry))
	if filepath.IsAbs(clean) || strings.HasPrefix(entry, "/") {
		return fmt.Errorf("%w: absolute entry %s", ErrUnsafePath, entry)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s climbs out of the archive", ErrUnsafePath, entry)
	}

	return within(targetDir, filepath.Join(targetDir, clean), entry)
}

// ValidateSymlink rejects a link at linkPath whose target resolves outside
// targetDir. Absolute targets are never allowed.
func ValidateSymlink(targetDir, linkPath, linkTarget string) error {
	if filepath.IsAbs(linkTarget) || strings.HasPrefix(linkTarget, "/") {
		return fmt.Errorf("%w: %s -> %s is absolute", ErrUnsafePath, linkPath, linkTarget)
	}

	resolved := filepath.Join(filepath.Dir(linkPath), filepath.FromSlash(linkTarget))
	return within(targetDir, resolved, linkPath+" -> "+linkTarget)
}

func within(base, target, label string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", base, err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", target, err)
	}

	ok, err := IsPathWithinDirectory(absTarget, absBase)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s escapes %s", ErrUnsafePath, label, base)
	}
	return nil
}
