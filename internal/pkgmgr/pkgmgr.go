// Package pkgmgr installs versioned application packages: copy the archive
// into the cache, extract it, mark entry points executable, verify, and
// record what is installed.
package pkgmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/db"
	"github.com/quantmind-br/depctl/internal/fsops"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/quantmind-br/depctl/internal/security"
	"github.com/quantmind-br/depctl/internal/transaction"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
)

// DefaultMinFreeMB is the free space required before an install starts
const DefaultMinFreeMB = 500

// NoVersion is reported when nothing is installed
const NoVersion = "none"

// UnknownVersion is recorded when the file name does not follow the package grammar
const UnknownVersion = "unknown"

var (
	ErrInstallInProgress     = errors.New("another package installation is already in progress")
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
	ErrPackageNotFound       = errors.New("package source not found")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrVerificationFailed    = errors.New("installation verification failed")
	ErrNotInstalled          = errors.New("package not installed")
	ErrUnsupportedPlatform   = errors.New("unsupported platform")
)

// name-version-platform.ext, e.g. app-0.1.0-alpha.8-linux-x64.zip
var filenamePattern = regexp.MustCompile(`^(.+?)-(\d+\.\d+\.\d+(?:-[0-9A-Za-z.]+)?)-((?:linux|osx|win)-[A-Za-z0-9]+)\.(zip|tar\.gz|tgz|tar\.xz)$`)

var platformPattern = regexp.MustCompile(`^(?:linux|osx|win)-[A-Za-z0-9]+$`)

// Package is a release archive identified by its file name
type Package struct {
	File     string `json:"file"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Size     int64  `json:"size,omitempty"`
}

// ParseFilename splits a package file name into name, version and platform
func ParseFilename(file string) (Package, bool) {
	m := filenamePattern.FindStringSubmatch(file)
	if m == nil {
		return Package{File: file}, false
	}
	return Package{File: file, Name: m[1], Version: m[2], Platform: m[3]}, true
}

// DetectPlatform maps a GOOS/GOARCH pair to a package platform token
func DetectPlatform(goos, goarch string) (string, error) {
	var osPart, archPart string
	switch goos {
	case "linux":
		osPart = "linux"
	case "darwin":
		osPart = "osx"
	case "windows":
		osPart = "win"
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	switch goarch {
	case "amd64":
		archPart = "x64"
	case "arm64":
		archPart = "arm64"
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return osPart + "-" + archPart, nil
}

// Dirs supplies the filesystem layout
type Dirs interface {
	InstalledDir() string
	CacheDir() string
	PackageSourceDir() string
}

// HistoryRecorder persists install outcomes
type HistoryRecorder interface {
	RecordInstall(ctx context.Context, entry *db.HistoryEntry) error
}

// Extractor unpacks archive into destDir
type Extractor func(archive, destDir string) error

// DiskFreeFunc reports the bytes available to the current user at path
type DiskFreeFunc func(path string) (uint64, error)

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Manager owns the installed directory and the package metadata record
type Manager struct {
	fs       afero.Fs
	dirs     Dirs
	store    core.KVStore
	history  HistoryRecorder
	extract  Extractor
	diskFree DiskFreeFunc
	minFree  uint64
	platform string
	launcher string
	binary   string
	now      func() time.Time
	log      *zerolog.Logger

	mu sync.Mutex
}

// Option configures a Manager
type Option func(*Manager)

// WithPlatform overrides the detected host platform
func WithPlatform(platform string) Option {
	return func(m *Manager) { m.platform = platform }
}

// WithExtractor replaces the archive extractor
func WithExtractor(fn Extractor) Option {
	return func(m *Manager) { m.extract = fn }
}

// WithDiskFree replaces the free-space probe
func WithDiskFree(fn DiskFreeFunc) Option {
	return func(m *Manager) { m.diskFree = fn }
}

// WithMinFreeMB sets the free space gate. Zero disables it.
func WithMinFreeMB(mb uint64) Option {
	return func(m *Manager) { m.minFree = mb * 1024 * 1024 }
}

// WithEntryPoints names the launcher script and native binary inside a package
func WithEntryPoints(launcher, binary string) Option {
	return func(m *Manager) {
		if launcher != "" {
			m.launcher = launcher
		}
		if binary != "" {
			m.binary = binary
		}
	}
}

// WithHistory records every install outcome
func WithHistory(h HistoryRecorder) Option {
	return func(m *Manager) { m.history = h }
}

// WithClock sets the time source used for install timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager. The default extractor works on the OS filesystem,
// so fs must be an OS-backed afero.Fs unless WithExtractor is given.
func New(fs afero.Fs, dirs Dirs, store core.KVStore, log *zerolog.Logger, opts ...Option) (*Manager, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	m := &Manager{
		fs:       fs,
		dirs:     dirs,
		store:    store,
		extract:  helpers.ExtractArchive,
		diskFree: diskFree,
		minFree:  DefaultMinFreeMB * 1024 * 1024,
		launcher: "start.sh",
		binary:   "webservice",
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.platform == "" {
		p, err := DetectPlatform(runtime.GOOS, runtime.GOARCH)
		if err != nil {
			return nil, err
		}
		m.platform = p
	}
	if !platformPattern.MatchString(m.platform) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, m.platform)
	}
	return m, nil
}

// Platform returns the host platform token, e.g. "linux-x64"
func (m *Manager) Platform() string {
	return m.platform
}

func (m *Manager) targetDir(platform string) string {
	return filepath.Join(m.dirs.InstalledDir(), platform)
}

// resolve reads platform and version from the file name, falling back to
// the host platform when the name does not follow the grammar
func (m *Manager) resolve(file string) Package {
	pkg, ok := ParseFilename(file)
	if ok {
		return pkg
	}
	pkg.Name = helpers.TrimArchiveExt(file)
	pkg.Version = UnknownVersion
	pkg.Platform = m.platform
	return pkg
}

// InstallPackage runs the full pipeline for one archive from the package
// source directory. Either a verified install directory replaces the
// previous one and the metadata is updated, or nothing changes.
func (m *Manager) InstallPackage(ctx context.Context, file string, onProgress core.PackageProgressFunc) (err error) {
	if !m.mu.TryLock() {
		return ErrInstallInProgress
	}
	defer m.mu.Unlock()

	pkg := m.resolve(file)
	logger := m.log.With().Str("package", file).Str("platform", pkg.Platform).Logger()
	logger.Info().Str("version", pkg.Version).Msg("installing package")

	var checksum string
	defer func() {
		if err != nil {
			logger.Error().Err(err).Msg("package installation failed")
			onProgress.Emit(core.StageError, 0, fmt.Sprintf("Installation failed: %v", err))
		}
		m.record(ctx, pkg, err)
	}()

	if err := security.ValidatePackageFile(file); err != nil {
		return err
	}
	if err := security.ValidateVersion(pkg.Version); err != nil {
		return err
	}

	onProgress.Emit(core.StageVerifying, 0, "Checking disk space...")
	if err := m.checkDiskSpace(); err != nil {
		return err
	}

	cached, err := m.download(file, onProgress)
	if err != nil {
		return err
	}

	checksum, err = m.verifyChecksum(file, cached)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.install(ctx, cached, pkg, checksum, onProgress, &logger); err != nil {
		return err
	}

	onProgress.Emit(core.StageCompleted, 100, "Installation completed successfully")
	logger.Info().Str("version", pkg.Version).Msg("package installed")
	return nil
}

func (m *Manager) checkDiskSpace() error {
	if m.minFree == 0 {
		return nil
	}
	probe := fsops.NearestExisting(m.fs, m.dirs.InstalledDir())
	free, err := m.diskFree(probe)
	if err != nil {
		// Let the install itself fail if space really runs out
		m.log.Warn().Err(err).Str("path", probe).Msg("could not check free disk space")
		return nil
	}
	if free < m.minFree {
		return fmt.Errorf("%w: %d MB available, %d MB required",
			ErrInsufficientDiskSpace, free/(1024*1024), m.minFree/(1024*1024))
	}
	return nil
}

func (m *Manager) download(file string, onProgress core.PackageProgressFunc) (string, error) {
	onProgress.Emit(core.StageDownloading, 0, "Preparing to download package...")

	src := filepath.Join(m.dirs.PackageSourceDir(), file)
	if !fsops.Exists(m.fs, src) {
		return "", fmt.Errorf("%w: %s", ErrPackageNotFound, src)
	}
	if err := fsops.EnsureDir(m.fs, m.dirs.CacheDir(), 0755); err != nil {
		return "", err
	}

	onProgress.Emit(core.StageDownloading, 50, "Copying package...")
	cached := filepath.Join(m.dirs.CacheDir(), file)
	if err := fsops.CopyFile(m.fs, src, cached); err != nil {
		return "", fmt.Errorf("copy package to cache: %w", err)
	}

	onProgress.Emit(core.StageDownloading, 100, "Package downloaded successfully")
	return cached, nil
}

// verifyChecksum hashes the cached archive and compares it with a
// "<file>.sha256" sidecar when the source provides one
func (m *Manager) verifyChecksum(file, cached string) (string, error) {
	sum, err := fsops.HashFile(m.fs, cached)
	if err != nil {
		return "", err
	}

	sidecar := filepath.Join(m.dirs.PackageSourceDir(), file+".sha256")
	if !fsops.Exists(m.fs, sidecar) {
		return sum, nil
	}
	raw, err := afero.ReadFile(m.fs, sidecar)
	if err != nil {
		return "", fmt.Errorf("read checksum file: %w", err)
	}
	want, err := helpers.ParseChecksumFile(string(raw))
	if err != nil {
		return "", err
	}
	if sum != want {
		m.fs.Remove(cached)
		return "", fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, want)
	}
	return sum, nil
}

// install extracts into a staging directory beside the target and swaps it
// in once verified. Every step registers its undo with the transaction.
func (m *Manager) install(ctx context.Context, archive string, pkg Package, checksum string, onProgress core.PackageProgressFunc, logger *zerolog.Logger) (err error) {
	tx := transaction.NewManager(logger)
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error().Err(rbErr).Msg("rollback incomplete")
			}
		}
	}()

	onProgress.Emit(core.StageExtracting, 0, "Preparing to extract package...")

	installed := m.dirs.InstalledDir()
	staging, err := fsops.StagingDir(m.fs, installed, "."+pkg.Platform+"-")
	if err != nil {
		return err
	}
	tx.Add("remove staging dir", func() error { return m.fs.RemoveAll(staging) })

	onProgress.Emit(core.StageExtracting, 20, "Extracting files...")
	if err := m.extract(archive, staging); err != nil {
		return fmt.Errorf("extract package: %w", err)
	}

	onProgress.Emit(core.StageExtracting, 80, "Setting file permissions...")
	m.setPermissions(staging, pkg.Platform, logger)
	onProgress.Emit(core.StageExtracting, 100, "Package extracted successfully")

	onProgress.Emit(core.StageVerifying, 90, "Verifying installation...")
	if err := m.verify(staging, pkg.Platform); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := m.targetDir(pkg.Platform)
	backup := filepath.Join(installed, "."+pkg.Platform+".previous")
	hadPrevious := fsops.Exists(m.fs, target)
	if hadPrevious {
		if err := m.fs.RemoveAll(backup); err != nil {
			return fmt.Errorf("clear previous backup: %w", err)
		}
		if err := m.fs.Rename(target, backup); err != nil {
			return fmt.Errorf("move previous install aside: %w", err)
		}
		tx.Add("restore previous install", func() error {
			if err := m.fs.RemoveAll(target); err != nil {
				return err
			}
			return m.fs.Rename(backup, target)
		})
	}

	if err := m.fs.Rename(staging, target); err != nil {
		return fmt.Errorf("move package into place: %w", err)
	}
	tx.Add("remove install dir", func() error { return m.fs.RemoveAll(target) })

	meta := core.PackageMeta{
		Version:     pkg.Version,
		Platform:    pkg.Platform,
		InstalledAt: m.now().UTC(),
		Checksum:    checksum,
	}
	if err := m.writeMeta(ctx, meta); err != nil {
		return err
	}

	tx.Commit()
	if hadPrevious {
		if err := m.fs.RemoveAll(backup); err != nil {
			logger.Warn().Err(err).Str("path", backup).Msg("failed to remove previous install")
		}
	}
	return nil
}

// setPermissions marks entry points executable. Failures are logged only.
func (m *Manager) setPermissions(dir, platform string, logger *zerolog.Logger) {
	chmod := func(name string, required bool) {
		path := filepath.Join(dir, name)
		if err := m.fs.Chmod(path, 0755); err != nil {
			if required {
				logger.Warn().Err(err).Str("file", name).Msg("failed to set executable permission")
			}
		}
	}

	switch platformOS(platform) {
	case "linux":
		chmod(m.launcher, true)
		chmod(m.binary, false)
	case "osx":
		chmod(m.binary, true)
	}
}

// EntryPoint is the file that must exist for an install to count
func (m *Manager) EntryPoint(platform string) string {
	switch platformOS(platform) {
	case "linux":
		return m.launcher
	case "win":
		return m.binary + ".exe"
	default:
		return m.binary
	}
}

func (m *Manager) verify(dir, platform string) error {
	name := m.EntryPoint(platform)
	info, err := m.fs.Stat(filepath.Join(dir, name))
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s not found", ErrVerificationFailed, name)
	}
	return nil
}

func platformOS(platform string) string {
	family, _, _ := strings.Cut(platform, "-")
	return family
}

func (m *Manager) writeMeta(ctx context.Context, meta core.PackageMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode package metadata: %w", err)
	}
	if err := m.store.Set(ctx, core.KeyPackageMeta, raw); err != nil {
		return fmt.Errorf("save package metadata: %w", err)
	}
	return nil
}

// Meta returns the recorded installation metadata
func (m *Manager) Meta(ctx context.Context) (*core.PackageMeta, error) {
	raw, found, err := m.store.Get(ctx, core.KeyPackageMeta)
	if err != nil {
		return nil, fmt.Errorf("load package metadata: %w", err)
	}
	if !found {
		return nil, ErrNotInstalled
	}
	var meta core.PackageMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode package metadata: %w", err)
	}
	return &meta, nil
}

// CheckInstalled reports the installation for the host platform
func (m *Manager) CheckInstalled(ctx context.Context) core.PackageInfo {
	target := m.targetDir(m.platform)
	info := core.PackageInfo{
		Version:       NoVersion,
		Platform:      m.platform,
		InstalledPath: target,
	}

	if !fsops.IsDir(m.fs, target) {
		return info
	}
	meta, err := m.Meta(ctx)
	if err != nil {
		m.log.Info().Err(err).Msg("package not installed")
		return info
	}
	if meta.Platform != m.platform {
		m.log.Warn().Str("recorded", meta.Platform).Str("host", m.platform).Msg("platform mismatch")
	}

	info.Version = meta.Version
	info.Platform = meta.Platform
	info.IsInstalled = true
	return info
}

// InstalledVersion returns the recorded version or "none"
func (m *Manager) InstalledVersion(ctx context.Context) string {
	meta, err := m.Meta(ctx)
	if err != nil {
		return NoVersion
	}
	return meta.Version
}

// AvailablePackages lists archives in the package source directory that
// follow the package grammar, newest version first
func (m *Manager) AvailablePackages() ([]Package, error) {
	src := m.dirs.PackageSourceDir()
	entries, err := afero.ReadDir(m.fs, src)
	if err != nil {
		if fsops.Exists(m.fs, src) {
			return nil, fmt.Errorf("read package source: %w", err)
		}
		return []Package{}, nil
	}

	packages := make([]Package, 0, len(entries))
	versions := make(map[string]*semver.Version)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pkg, ok := ParseFilename(entry.Name())
		if !ok {
			continue
		}
		pkg.Size = entry.Size()
		if v, err := semver.NewVersion(pkg.Version); err == nil {
			versions[pkg.File] = v
		}
		packages = append(packages, pkg)
	}

	sort.SliceStable(packages, func(i, j int) bool {
		vi, vj := versions[packages[i].File], versions[packages[j].File]
		if vi != nil && vj != nil && !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		if (vi == nil) != (vj == nil) {
			return vi != nil
		}
		return packages[i].File > packages[j].File
	})
	return packages, nil
}

// ClearCache removes every cached archive and returns how many were removed
func (m *Manager) ClearCache() (int, error) {
	n, err := fsops.RemoveContents(m.fs, m.dirs.CacheDir())
	if err != nil {
		return n, fmt.Errorf("clear cache: %w", err)
	}
	m.log.Info().Int("removed", n).Msg("package cache cleared")
	return n, nil
}

// RemoveInstalled deletes the install directory of platform (the host
// platform when empty). Removing the host platform also clears metadata.
func (m *Manager) RemoveInstalled(ctx context.Context, platform string) error {
	if !m.mu.TryLock() {
		return ErrInstallInProgress
	}
	defer m.mu.Unlock()

	if platform == "" {
		platform = m.platform
	}
	if !platformPattern.MatchString(platform) {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	target := m.targetDir(platform)
	if abs, err := filepath.Abs(target); err == nil {
		base, _ := filepath.Abs(m.dirs.InstalledDir())
		inside, err := security.IsPathWithinDirectory(abs, base)
		if err != nil || !inside || abs == base {
			return fmt.Errorf("refusing to remove %s", target)
		}
	}

	if err := m.fs.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	if platform == m.platform {
		if err := m.store.Delete(ctx, core.KeyPackageMeta); err != nil {
			return fmt.Errorf("clear package metadata: %w", err)
		}
	}
	m.log.Info().Str("platform", platform).Msg("package removed")
	return nil
}

func (m *Manager) record(ctx context.Context, pkg Package, err error) {
	if m.history == nil {
		return
	}
	entry := &db.HistoryEntry{
		Kind:    db.HistoryPackage,
		Subject: pkg.File,
		Version: pkg.Version,
		Command: pkg.Platform,
		Success: err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if recErr := m.history.RecordInstall(context.WithoutCancel(ctx), entry); recErr != nil {
		m.log.Warn().Err(recErr).Msg("failed to record install history")
	}
}
