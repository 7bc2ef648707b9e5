package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// validPackageFileRegex allows alphanumeric, dash, underscore, and dot
	validPackageFileRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	// validVersionRegex allows standard version formats
	validVersionRegex = regexp.MustCompile(`^[a-zA-Z0-9._+-]+$`)
)

// ValidatePackageFile validates a package archive file name for safety.
// Only a bare file name is accepted; directories are rejected.
func ValidatePackageFile(name string) error {
	if name == "" {
		return fmt.Errorf("package file name cannot be empty")
	}

	if len(name) > 255 {
		return fmt.Errorf("package file name too long (max 255 characters)")
	}

	if name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("package file name contains path traversal: %s", name)
	}

	if !validPackageFileRegex.MatchString(name) {
		return fmt.Errorf("invalid package file name %q: must contain only alphanumeric, dash, underscore, or dot characters", name)
	}

	return nil
}

// ValidateVersion validates a version string parsed from a package name
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("invalid version: version cannot be empty")
	}

	if len(version) >= 100 {
		return fmt.Errorf("version string too long (max 100 characters)")
	}

	if strings.Contains(version, "..") {
		return fmt.Errorf("invalid version: contains dangerous pattern: ..")
	}

	if !validVersionRegex.MatchString(version) {
		return fmt.Errorf("invalid version format: must be alphanumeric with dots, dashes, or plus signs")
	}

	return nil
}

// IsPathWithinDirectory checks if a target path is within a given base directory.
// Both paths must be absolute. A target equal to the base counts as inside.
func IsPathWithinDirectory(targetPath, basePath string) (bool, error) {
	if !filepath.IsAbs(targetPath) {
		return false, fmt.Errorf("target path must be absolute, got relative path: %s", targetPath)
	}
	if !filepath.IsAbs(basePath) {
		return false, fmt.Errorf("base path must be absolute, got relative path: %s", basePath)
	}

	rel, err := filepath.Rel(filepath.Clean(basePath), filepath.Clean(targetPath))
	if err != nil {
		return false, fmt.Errorf("failed to compute relative path: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}

	return true, nil
}
