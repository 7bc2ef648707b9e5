// Package orchestrator sequences resolve, execute and verify across the
// dependencies of a manifest.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/db"
	"github.com/quantmind-br/depctl/internal/resolver"
	"github.com/rs/zerolog"
)

// ErrInstallInProgress is returned when another install holds the lock
var ErrInstallInProgress = errors.New("another installation is already in progress")

// RegionSource provides the region used to resolve install commands
type RegionSource interface {
	DetectWithCache(ctx context.Context) core.RegionDetection
}

// CommandRunner executes a resolved command sequence
type CommandRunner interface {
	RunSequence(ctx context.Context, commands []string, dir string, onProgress core.ProgressFunc) error
}

// Verifier re-runs a dependency's check command after installation
type Verifier interface {
	Check(ctx context.Context, dep core.Dependency) core.CheckResult
}

// HistoryRecorder persists install outcomes
type HistoryRecorder interface {
	RecordInstall(ctx context.Context, entry *db.HistoryEntry) error
}

// Observer receives progress. Either field may be nil.
type Observer struct {
	// Batch is called when a dependency starts and when it finishes
	Batch core.BatchProgressFunc
	// Events carries the per-command subprocess events
	Events core.ProgressFunc
}

func (o Observer) batch(p core.BatchProgress) {
	if o.Batch != nil {
		o.Batch(p)
	}
}

// Failure is one failed dependency of a batch
type Failure struct {
	Dependency string `json:"dependency"`
	Error      string `json:"error"`
	// Manual is set when no install command exists for the region
	Manual bool `json:"manual,omitempty"`
}

// BatchResult aggregates the outcome of InstallFromManifest
type BatchResult struct {
	Success []string  `json:"success"`
	Failed  []Failure `json:"failed"`
}

// OK reports whether every dependency installed
func (r *BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// SingleResult is the outcome of InstallSingle
type SingleResult struct {
	Installed    bool   `json:"success"`
	Verified     bool   `json:"verified"`
	Version      string `json:"version,omitempty"`
	CheckCommand string `json:"checkCommand,omitempty"`
	Error        string `json:"error,omitempty"`
	Manual       bool   `json:"manual,omitempty"`
}

// Orchestrator runs installs one at a time
type Orchestrator struct {
	region   RegionSource
	runner   CommandRunner
	verifier Verifier
	history  HistoryRecorder
	workDir  string
	log      *zerolog.Logger

	mu sync.Mutex
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithHistory records every install outcome
func WithHistory(h HistoryRecorder) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithWorkDir sets the working directory for install commands
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// New creates an Orchestrator
func New(region RegionSource, runner CommandRunner, verifier Verifier, log *zerolog.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	o := &Orchestrator{
		region:   region,
		runner:   runner,
		verifier: verifier,
		log:      log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InstallFromManifest installs deps in order. A failing dependency is
// recorded and the batch moves on; the only returned error is
// ErrInstallInProgress.
func (o *Orchestrator) InstallFromManifest(ctx context.Context, deps []core.Dependency, obs Observer) (*BatchResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrInstallInProgress
	}
	defer o.mu.Unlock()

	detection := o.region.DetectWithCache(ctx)
	o.log.Info().
		Int("count", len(deps)).
		Str("region", string(detection.Region)).
		Msg("starting batch install")

	result := &BatchResult{Success: []string{}, Failed: []Failure{}}
	total := len(deps)

	for i, dep := range deps {
		name := displayName(dep)
		obs.batch(core.BatchProgress{
			Current:    i + 1,
			Total:      total,
			Dependency: name,
			Status:     core.StatusInstalling,
		})

		outcome := o.install(ctx, dep, detection.Region, obs.Events)

		progress := core.BatchProgress{
			Current:    i + 1,
			Total:      total,
			Dependency: name,
			Status:     core.StatusSuccess,
		}
		if outcome.err != nil {
			progress.Status = core.StatusError
			progress.Error = outcome.err.Error()
			result.Failed = append(result.Failed, Failure{
				Dependency: name,
				Error:      outcome.err.Error(),
				Manual:     outcome.manual,
			})
		} else {
			result.Success = append(result.Success, name)
		}
		obs.batch(progress)
	}

	o.log.Info().
		Int("succeeded", len(result.Success)).
		Int("failed", len(result.Failed)).
		Msg("batch install finished")
	return result, nil
}

// InstallSingle installs one dependency. With verify set it re-runs the
// check command afterwards; a failed verification leaves Installed true
// and only clears Verified.
func (o *Orchestrator) InstallSingle(ctx context.Context, dep core.Dependency, verify bool, events core.ProgressFunc) (*SingleResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrInstallInProgress
	}
	defer o.mu.Unlock()

	detection := o.region.DetectWithCache(ctx)
	outcome := o.install(ctx, dep, detection.Region, events)

	result := &SingleResult{CheckCommand: dep.CheckCommand}
	if outcome.err != nil {
		result.Error = outcome.err.Error()
		result.Manual = outcome.manual
		return result, nil
	}
	result.Installed = true

	if verify && o.verifier != nil {
		check := o.verifier.Check(ctx, dep)
		result.Version = check.Version
		result.Verified = check.Installed && !check.VersionMismatch
		if !result.Verified {
			o.log.Warn().
				Str("dependency", dep.Key).
				Bool("found", check.Installed).
				Str("version", check.Version).
				Msg("installed but verification could not confirm the result")
		}
	}

	return result, nil
}

type installOutcome struct {
	command string
	manual  bool
	err     error
}

func (o *Orchestrator) install(ctx context.Context, dep core.Dependency, region core.Region, events core.ProgressFunc) installOutcome {
	log := o.log.With().Str("dependency", dep.Key).Str("region", string(region)).Logger()

	parsed := resolver.Resolve(dep.InstallCommand, region)
	if !parsed.Available() {
		err := resolver.ErrManualInstall
		if dep.DownloadURL != "" {
			err = fmt.Errorf("%w: download from %s", resolver.ErrManualInstall, dep.DownloadURL)
		}
		log.Warn().Msg("no install command for region")
		outcome := installOutcome{manual: true, err: err}
		o.record(ctx, dep, region, outcome)
		return outcome
	}

	outcome := installOutcome{command: parsed.Command}
	log.Info().Str("command", parsed.Command).Msg("installing dependency")

	if err := o.runner.RunSequence(ctx, resolver.Split(parsed), o.workDir, events); err != nil {
		log.Error().Err(err).Msg("install command failed")
		outcome.err = err
	} else {
		log.Info().Msg("dependency installed")
	}

	o.record(ctx, dep, region, outcome)
	return outcome
}

func (o *Orchestrator) record(ctx context.Context, dep core.Dependency, region core.Region, outcome installOutcome) {
	if o.history == nil {
		return
	}
	entry := &db.HistoryEntry{
		Kind:       db.HistoryDependency,
		Subject:    dep.Key,
		Region:     string(region),
		Command:    outcome.command,
		Success:    outcome.err == nil,
		FinishedAt: time.Now().UTC(),
	}
	if outcome.err != nil {
		entry.Error = outcome.err.Error()
	}
	if err := o.history.RecordInstall(ctx, entry); err != nil {
		o.log.Warn().Err(err).Str("dependency", dep.Key).Msg("failed to record install history")
	}
}

func displayName(dep core.Dependency) string {
	if dep.Name != "" {
		return dep.Name
	}
	return dep.Key
}
