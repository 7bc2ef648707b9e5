package core

import "time"

// DependencyType tags the kind of external tool a dependency describes
type DependencyType string

const (
	DependencyTypeSystemRuntime   DependencyType = "system-runtime"
	DependencyTypeCLITool         DependencyType = "cli-tool"
	DependencyTypeLanguageRuntime DependencyType = "language-runtime"
)

// Region is the coarse network locality used to pick install mirrors
type Region string

const (
	RegionCN            Region = "CN"
	RegionInternational Region = "INTERNATIONAL"
)

// ParseRegion maps a configured string onto a Region. Unknown values map to
// the international default.
func ParseRegion(s string) (Region, bool) {
	switch Region(s) {
	case RegionCN:
		return RegionCN, true
	case RegionInternational:
		return RegionInternational, true
	default:
		return RegionInternational, false
	}
}

// DetectionMethod records how a region result was obtained
type DetectionMethod string

const (
	DetectionLocale   DetectionMethod = "locale"
	DetectionCache    DetectionMethod = "cache"
	DetectionOverride DetectionMethod = "override"
)

// RegionDetection is the cached outcome of region detection
type RegionDetection struct {
	Region     Region          `json:"region"`
	DetectedAt time.Time       `json:"detectedAt"`
	Method     DetectionMethod `json:"method"`
}

// VersionConstraint bounds the acceptable versions of a dependency.
// When Exact is set, Min and Max are ignored.
type VersionConstraint struct {
	Exact       string `json:"exact,omitempty" yaml:"exact,omitempty"`
	Min         string `json:"min,omitempty" yaml:"min,omitempty"`
	Max         string `json:"max,omitempty" yaml:"max,omitempty"`
	Recommended string `json:"recommended,omitempty" yaml:"recommended,omitempty"`
}

// IsZero reports whether no bound is set
func (c VersionConstraint) IsZero() bool {
	return c.Exact == "" && c.Min == "" && c.Max == "" && c.Recommended == ""
}

// CommandKind discriminates the InstallCommand variants
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandSingle
	CommandRegional
)

func (k CommandKind) String() string {
	switch k {
	case CommandSingle:
		return "single"
	case CommandRegional:
		return "regional"
	default:
		return "none"
	}
}

// InstallCommand is a tagged variant: no command, one universal command, or
// a per-region pair. A regional command may leave one side empty and may
// carry a universal fallback in Single.
type InstallCommand struct {
	Kind   CommandKind
	Single string
	China  string
	Global string
}

// NoCommand returns the "not available" variant
func NoCommand() InstallCommand {
	return InstallCommand{Kind: CommandNone}
}

// SingleCommand returns a universal command variant
func SingleCommand(cmd string) InstallCommand {
	return InstallCommand{Kind: CommandSingle, Single: cmd}
}

// RegionalCommand returns a per-region command variant
func RegionalCommand(china, global string) InstallCommand {
	return InstallCommand{Kind: CommandRegional, China: china, Global: global}
}

// WithFallback returns a copy of a regional command using fallback when the
// matching side is empty
func (c InstallCommand) WithFallback(fallback string) InstallCommand {
	c.Single = fallback
	return c
}

// Display returns a human readable rendering of the command
func (c InstallCommand) Display() string {
	switch c.Kind {
	case CommandSingle:
		return c.Single
	case CommandRegional:
		if c.Global != "" {
			return c.Global
		}
		if c.China != "" {
			return c.China
		}
		return c.Single
	default:
		return ""
	}
}

// ParsedCommandType is the outcome of command resolution
type ParsedCommandType string

const (
	ParsedShell        ParsedCommandType = "shell"
	ParsedNotAvailable ParsedCommandType = "not-available"
)

// ParsedInstallCommand is a concrete command selected for a region
type ParsedInstallCommand struct {
	Type    ParsedCommandType `json:"type"`
	Command string            `json:"command,omitempty"`
}

// Available reports whether the command can be executed
func (p ParsedInstallCommand) Available() bool {
	return p.Type == ParsedShell && p.Command != ""
}

// Dependency describes one external tool or runtime declared by a manifest
type Dependency struct {
	Key                string            `json:"key"`
	Name               string            `json:"name"`
	Type               DependencyType    `json:"type"`
	CheckCommand       string            `json:"checkCommand"`
	InstallCommand     InstallCommand    `json:"-"`
	DownloadURL        string            `json:"downloadUrl,omitempty"`
	Description        string            `json:"description,omitempty"`
	VersionConstraints VersionConstraint `json:"versionConstraints"`
}

// CheckResult is the outcome of checking one dependency
type CheckResult struct {
	Key             string         `json:"key"`
	Name            string         `json:"name"`
	Type            DependencyType `json:"type"`
	Installed       bool           `json:"installed"`
	Version         string         `json:"version,omitempty"`
	VersionMismatch bool           `json:"versionMismatch,omitempty"`
	RequiredVersion string         `json:"requiredVersion"`
	InstallCommand  string         `json:"installCommand,omitempty"`
	CheckCommand    string         `json:"checkCommand"`
	DownloadURL     string         `json:"downloadUrl,omitempty"`
	Description     string         `json:"description,omitempty"`
}

// NeedsInstall reports whether the dependency is absent or out of range
func (r CheckResult) NeedsInstall() bool {
	return !r.Installed || r.VersionMismatch
}

// InstallStatus is the per-dependency state in a batch install
type InstallStatus string

const (
	StatusPending    InstallStatus = "pending"
	StatusInstalling InstallStatus = "installing"
	StatusSuccess    InstallStatus = "success"
	StatusError      InstallStatus = "error"
)

// PackageMeta is the persisted record of the installed application package
type PackageMeta struct {
	Version     string    `json:"version"`
	Platform    string    `json:"platform"`
	InstalledAt time.Time `json:"installedAt"`
	Checksum    string    `json:"checksum,omitempty"`
}

// PackageInfo describes the installation state for the host platform
type PackageInfo struct {
	Version       string `json:"version"`
	Platform      string `json:"platform"`
	InstalledPath string `json:"installedPath"`
	IsInstalled   bool   `json:"isInstalled"`
}

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneral        = 1
	ExitInvalidArgs    = 2
	ExitInstallFailed  = 3
	ExitPartialInstall = 4
	ExitDatabase       = 5
	ExitPermission     = 6
	ExitManualRequired = 7
	ExitInterrupted    = 130
)
