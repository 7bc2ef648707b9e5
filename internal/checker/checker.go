// Package checker runs dependency check commands and classifies each
// dependency as absent, satisfied or version-mismatched.
package checker

import (
	"context"
	"strings"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/quantmind-br/depctl/internal/resolver"
	"github.com/quantmind-br/depctl/internal/version"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
)

// DefaultTimeout bounds each check command
const DefaultTimeout = 10 * time.Second

// UnknownVersion is reported when a check succeeds but prints no version
const UnknownVersion = "installed"

// Checker executes check commands through a helpers.CommandRunner
type Checker struct {
	runner  helpers.CommandRunner
	timeout time.Duration
	region  core.Region
	log     *zerolog.Logger
}

// Option configures a Checker
type Option func(*Checker)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRegion makes results carry the install command resolved for region.
// Without it a regional command is shown by its global side.
func WithRegion(region core.Region) Option {
	return func(c *Checker) { c.region = region }
}

// New creates a Checker
func New(runner helpers.CommandRunner, log *zerolog.Logger, opts ...Option) *Checker {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	c := &Checker{
		runner:  runner,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForRegion returns a copy of c that resolves install commands for region
func (c *Checker) ForRegion(region core.Region) *Checker {
	cp := *c
	cp.region = region
	return &cp
}

// Check runs dep's check command. It never fails: a missing tool, a
// non-zero exit and a timeout all yield Installed=false with no version.
func (c *Checker) Check(ctx context.Context, dep core.Dependency) core.CheckResult {
	result := core.CheckResult{
		Key:             dep.Key,
		Name:            dep.Name,
		Type:            dep.Type,
		RequiredVersion: version.FormatRequirement(dep.VersionConstraints),
		InstallCommand:  c.installCommand(dep.InstallCommand),
		CheckCommand:    dep.CheckCommand,
		DownloadURL:     dep.DownloadURL,
		Description:     dep.Description,
	}

	if strings.TrimSpace(dep.CheckCommand) == "" {
		c.log.Debug().Str("dependency", dep.Key).Msg("no check command, treating as not installed")
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stdout, _, err := c.runner.RunShell(ctx, dep.CheckCommand)
	if err != nil {
		c.log.Debug().Err(err).Str("dependency", dep.Key).Msg("check command failed")
		return result
	}

	result.Installed = true
	found, ok := version.ExtractVersion(stdout)
	if !ok {
		// Lenient: a tool that runs but prints no version still counts
		c.log.Warn().Str("dependency", dep.Key).Msg("check output has no version number")
		result.Version = UnknownVersion
		return result
	}

	result.Version = found
	satisfied, parseErr := version.SatisfiesStrict(found, dep.VersionConstraints)
	if parseErr != nil {
		c.log.Warn().Err(parseErr).Str("dependency", dep.Key).Msg("version comparison is advisory")
	}
	result.VersionMismatch = !satisfied

	c.log.Debug().
		Str("dependency", dep.Key).
		Str("version", found).
		Bool("mismatch", result.VersionMismatch).
		Msg("dependency checked")
	return result
}

func (c *Checker) installCommand(cmd core.InstallCommand) string {
	if c.region == "" {
		return cmd.Display()
	}
	return resolver.Resolve(cmd, c.region).Command
}

// CheckAll checks deps concurrently and returns results in input order
func (c *Checker) CheckAll(ctx context.Context, deps []core.Dependency) []core.CheckResult {
	mapper := iter.Mapper[core.Dependency, core.CheckResult]{MaxGoroutines: 4}
	return mapper.Map(deps, func(dep *core.Dependency) core.CheckResult {
		return c.Check(ctx, *dep)
	})
}

// Missing filters results down to the dependencies needing installation
func Missing(results []core.CheckResult) []core.CheckResult {
	var out []core.CheckResult
	for _, r := range results {
		if r.NeedsInstall() {
			out = append(out, r)
		}
	}
	return out
}
