package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantmind-br/depctl/internal/checker"
	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/db"
	"github.com/quantmind-br/depctl/internal/executor"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/quantmind-br/depctl/internal/logging"
	"github.com/quantmind-br/depctl/internal/manifest"
	"github.com/quantmind-br/depctl/internal/orchestrator"
	"github.com/quantmind-br/depctl/internal/paths"
	"github.com/quantmind-br/depctl/internal/pkgmgr"
	"github.com/quantmind-br/depctl/internal/region"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ExitError carries the process exit code for a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitErr(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps a command error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return core.ExitSuccess
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	if errors.Is(err, context.Canceled) {
		return core.ExitInterrupted
	}
	return core.ExitGeneral
}

// env holds the components a command works with. Each command opens its
// own env and closes it when done.
type env struct {
	cfg      *config.Config
	log      *zerolog.Logger
	fs       afero.Fs
	paths    *paths.Resolver
	db       *db.DB
	region   *region.Detector
	checker  *checker.Checker
	engine   *executor.Engine
	packages *pkgmgr.Manager
}

// runnerFactory creates the command runner used by new envs
var runnerFactory = func() helpers.CommandRunner {
	return helpers.NewOSCommandRunner()
}

func openEnv(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*env, error) {
	resolver := paths.NewResolver(cfg)
	fs := afero.NewOsFs()

	dbPath := resolver.DBFile()
	if err := fs.MkdirAll(resolver.DataDir(), 0755); err != nil {
		return nil, exitErr(core.ExitPermission, "create data dir: %w", err)
	}
	database, err := db.New(ctx, dbPath)
	if err != nil {
		return nil, exitErr(core.ExitDatabase, "open database: %w", err)
	}

	runner := runnerFactory()
	detector := region.NewDetector(database, logging.Component(log, "region"),
		region.WithOverride(cfg.Region.Override),
		region.WithTTL(cfg.Region.CacheTTL),
	)
	e := &env{
		cfg:     cfg,
		log:     log,
		fs:      fs,
		paths:   resolver,
		db:      database,
		region:  detector,
		checker: checker.New(runner, logging.Component(log, "checker"), checker.WithTimeout(cfg.Install.CheckTimeout)),
		engine:  executor.New(runner, logging.Component(log, "executor"), executor.WithTimeout(cfg.Install.CommandTimeout)),
	}
	return e, nil
}

func (e *env) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func (e *env) manifest() (*manifest.Manifest, error) {
	path := e.paths.ManifestFile()
	m, err := manifest.Load(e.fs, path)
	if err != nil {
		return nil, exitErr(core.ExitInvalidArgs, "load manifest: %w", err)
	}
	return m, nil
}

func (e *env) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(e.region, e.engine, e.checker, logging.Component(e.log, "orchestrator"),
		orchestrator.WithHistory(e.db),
		orchestrator.WithWorkDir(e.paths.DataDir()),
	)
}

func (e *env) packageManager() (*pkgmgr.Manager, error) {
	if e.packages != nil {
		return e.packages, nil
	}
	m, err := pkgmgr.New(e.fs, e.paths, e.db, logging.Component(e.log, "pkgmgr"),
		pkgmgr.WithHistory(e.db),
		pkgmgr.WithMinFreeMB(e.cfg.Install.MinFreeMB),
		pkgmgr.WithEntryPoints(e.cfg.Package.Launcher, e.cfg.Package.Binary),
	)
	if err != nil {
		return nil, err
	}
	e.packages = m
	return m, nil
}
