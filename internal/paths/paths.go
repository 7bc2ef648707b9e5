package paths

import (
	"os"
	"path/filepath"

	"github.com/quantmind-br/depctl/internal/config"
)

// Resolver centralizes the default depctl locations.
// Base directories come from HOME unless the configuration overrides them.
type Resolver struct {
	homeDir string
	cfg     *config.Config
}

// NewResolver creates a Resolver for the current user's HOME
func NewResolver(cfg *config.Config) *Resolver {
	homeDir, _ := os.UserHomeDir()
	return &Resolver{
		homeDir: homeDir,
		cfg:     cfg,
	}
}

// NewResolverWithHome creates a Resolver with an explicit homeDir (useful for tests)
func NewResolverWithHome(cfg *config.Config, homeDir string) *Resolver {
	return &Resolver{
		homeDir: homeDir,
		cfg:     cfg,
	}
}

// HomeDir returns the resolved HOME directory
func (r *Resolver) HomeDir() string {
	return r.homeDir
}

// ConfigDir returns ~/.config/depctl
func (r *Resolver) ConfigDir() string {
	return filepath.Join(r.homeDir, ".config", "depctl")
}

// DataDir returns cfg.Paths.DataDir, or ~/.local/share/depctl when unset
func (r *Resolver) DataDir() string {
	if r.cfg != nil && r.cfg.Paths.DataDir != "" {
		return r.cfg.Paths.DataDir
	}
	return filepath.Join(r.homeDir, ".local", "share", "depctl")
}

// PackagesDir holds everything owned by the package pipeline
func (r *Resolver) PackagesDir() string {
	return filepath.Join(r.DataDir(), "packages")
}

// InstalledDir holds one extracted package directory per platform
func (r *Resolver) InstalledDir() string {
	return filepath.Join(r.PackagesDir(), "installed")
}

// PlatformDir returns the install target for a platform such as "linux-x64"
func (r *Resolver) PlatformDir(platform string) string {
	return filepath.Join(r.InstalledDir(), platform)
}

// CacheDir holds copied package archives
func (r *Resolver) CacheDir() string {
	return filepath.Join(r.PackagesDir(), "cache")
}

// PackageSourceDir is where release archives are picked up from
func (r *Resolver) PackageSourceDir() string {
	if r.cfg != nil && r.cfg.Paths.PackageSource != "" {
		return r.cfg.Paths.PackageSource
	}
	return filepath.Join(r.DataDir(), "release-packages")
}

// ManifestFile returns the dependency manifest location
func (r *Resolver) ManifestFile() string {
	if r.cfg != nil && r.cfg.Paths.ManifestFile != "" {
		return r.cfg.Paths.ManifestFile
	}
	return filepath.Join(r.ConfigDir(), "manifest.yaml")
}

// DBFile returns the SQLite database location
func (r *Resolver) DBFile() string {
	if r.cfg != nil && r.cfg.Paths.DBFile != "" {
		return r.cfg.Paths.DBFile
	}
	return filepath.Join(r.DataDir(), "depctl.db")
}
