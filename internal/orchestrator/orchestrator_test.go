package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/db"
	"github.com/quantmind-br/depctl/internal/executor"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/quantmind-br/depctl/internal/resolver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRegion core.Region

func (r fixedRegion) DetectWithCache(context.Context) core.RegionDetection {
	return core.RegionDetection{Region: core.Region(r), DetectedAt: time.Now(), Method: core.DetectionLocale}
}

type mockRunner struct {
	RunSequenceFunc func(ctx context.Context, commands []string, dir string, onProgress core.ProgressFunc) error
}

func (m *mockRunner) RunSequence(ctx context.Context, commands []string, dir string, onProgress core.ProgressFunc) error {
	if m.RunSequenceFunc != nil {
		return m.RunSequenceFunc(ctx, commands, dir, onProgress)
	}
	return nil
}

type mockVerifier struct {
	CheckFunc func(ctx context.Context, dep core.Dependency) core.CheckResult
}

func (m *mockVerifier) Check(ctx context.Context, dep core.Dependency) core.CheckResult {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, dep)
	}
	return core.CheckResult{Key: dep.Key}
}

func newTestOrchestrator(region core.Region, runner CommandRunner, verifier Verifier, opts ...Option) *Orchestrator {
	logger := zerolog.Nop()
	return New(fixedRegion(region), runner, verifier, &logger, opts...)
}

func threeDeps() []core.Dependency {
	return []core.Dependency{
		{Key: "dotnet", Name: ".NET", InstallCommand: core.SingleCommand("install-dotnet")},
		{Key: "node", Name: "Node.js", InstallCommand: core.SingleCommand("install-node")},
		{Key: "claude", Name: "Claude CLI", InstallCommand: core.SingleCommand("install-claude")},
	}
}

func TestInstallFromManifestContinuesAfterFailure(t *testing.T) {
	var attempted []string
	runner := &mockRunner{
		RunSequenceFunc: func(_ context.Context, commands []string, _ string, _ core.ProgressFunc) error {
			attempted = append(attempted, commands...)
			if commands[0] == "install-node" {
				return &executor.CommandError{Index: 0, Command: commands[0], ExitCode: 1}
			}
			return nil
		},
	}

	var progress []core.BatchProgress
	orch := newTestOrchestrator(core.RegionInternational, runner, nil)
	result, err := orch.InstallFromManifest(context.Background(), threeDeps(), Observer{
		Batch: func(p core.BatchProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"install-dotnet", "install-node", "install-claude"}, attempted)
	assert.Equal(t, []string{".NET", "Claude CLI"}, result.Success)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "Node.js", result.Failed[0].Dependency)
	assert.Contains(t, result.Failed[0].Error, "exited with code 1")
	assert.False(t, result.Failed[0].Manual)
	assert.False(t, result.OK())

	// One "installing" and one final update per dependency
	require.Len(t, progress, 6)
	assert.Equal(t, core.BatchProgress{Current: 1, Total: 3, Dependency: ".NET", Status: core.StatusInstalling}, progress[0])
	assert.Equal(t, core.StatusSuccess, progress[1].Status)
	assert.Equal(t, core.StatusError, progress[3].Status)
	assert.Equal(t, 2, progress[3].Current)
	assert.NotEmpty(t, progress[3].Error)
	assert.Equal(t, 3, progress[5].Current)
	assert.Equal(t, core.StatusSuccess, progress[5].Status)
}

func TestInstallFromManifestManualInstall(t *testing.T) {
	called := false
	runner := &mockRunner{
		RunSequenceFunc: func(context.Context, []string, string, core.ProgressFunc) error {
			called = true
			return nil
		},
	}

	deps := []core.Dependency{{
		Key:            "dotnet",
		Name:           ".NET",
		InstallCommand: core.RegionalCommand("cn-only", ""),
		DownloadURL:    "https://dotnet.microsoft.com/download",
	}}

	orch := newTestOrchestrator(core.RegionInternational, runner, nil)
	result, err := orch.InstallFromManifest(context.Background(), deps, Observer{})
	require.NoError(t, err)

	assert.False(t, called)
	assert.Empty(t, result.Success)
	require.Len(t, result.Failed, 1)
	assert.True(t, result.Failed[0].Manual)
	assert.Contains(t, result.Failed[0].Error, resolver.ErrManualInstall.Error())
	assert.Contains(t, result.Failed[0].Error, "https://dotnet.microsoft.com/download")
}

func TestInstallFromManifestUsesRegion(t *testing.T) {
	var got []string
	runner := &mockRunner{
		RunSequenceFunc: func(_ context.Context, commands []string, _ string, _ core.ProgressFunc) error {
			got = append(got, commands...)
			return nil
		},
	}
	deps := []core.Dependency{{Key: "npm", InstallCommand: core.RegionalCommand("npm i --registry cn", "npm i")}}

	orch := newTestOrchestrator(core.RegionCN, runner, nil)
	result, err := orch.InstallFromManifest(context.Background(), deps, Observer{})
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, []string{"npm i --registry cn"}, got)
	assert.Equal(t, []string{"npm"}, result.Success)
}

func TestInstallFromManifestEmpty(t *testing.T) {
	orch := newTestOrchestrator(core.RegionCN, &mockRunner{}, nil)
	result, err := orch.InstallFromManifest(context.Background(), nil, Observer{})
	require.NoError(t, err)
	assert.Empty(t, result.Success)
	assert.Empty(t, result.Failed)
	assert.True(t, result.OK())
}

func TestInstallLock(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	runner := &mockRunner{
		RunSequenceFunc: func(context.Context, []string, string, core.ProgressFunc) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		},
	}
	orch := newTestOrchestrator(core.RegionCN, runner, nil)

	done := make(chan error, 1)
	go func() {
		_, err := orch.InstallFromManifest(context.Background(), threeDeps()[:1], Observer{})
		done <- err
	}()
	<-started

	_, err := orch.InstallFromManifest(context.Background(), threeDeps(), Observer{})
	assert.ErrorIs(t, err, ErrInstallInProgress)
	_, err = orch.InstallSingle(context.Background(), threeDeps()[0], false, nil)
	assert.ErrorIs(t, err, ErrInstallInProgress)

	close(release)
	require.NoError(t, <-done)

	// The lock is released after completion
	_, err = orch.InstallSingle(context.Background(), threeDeps()[0], false, nil)
	assert.NoError(t, err)
}

func TestInstallSingle(t *testing.T) {
	dep := core.Dependency{
		Key:                "dotnet",
		CheckCommand:       "dotnet --version",
		InstallCommand:     core.SingleCommand("install-dotnet"),
		VersionConstraints: core.VersionConstraint{Min: "8.0.0"},
	}

	t.Run("verified", func(t *testing.T) {
		verifier := &mockVerifier{CheckFunc: func(_ context.Context, d core.Dependency) core.CheckResult {
			return core.CheckResult{Key: d.Key, Installed: true, Version: "8.0.3"}
		}}
		orch := newTestOrchestrator(core.RegionCN, &mockRunner{}, verifier)

		result, err := orch.InstallSingle(context.Background(), dep, true, nil)
		require.NoError(t, err)
		assert.True(t, result.Installed)
		assert.True(t, result.Verified)
		assert.Equal(t, "8.0.3", result.Version)
		assert.Equal(t, "dotnet --version", result.CheckCommand)
	})

	t.Run("verification failure is advisory", func(t *testing.T) {
		verifier := &mockVerifier{CheckFunc: func(_ context.Context, d core.Dependency) core.CheckResult {
			return core.CheckResult{Key: d.Key, Installed: false}
		}}
		orch := newTestOrchestrator(core.RegionCN, &mockRunner{}, verifier)

		result, err := orch.InstallSingle(context.Background(), dep, true, nil)
		require.NoError(t, err)
		assert.True(t, result.Installed)
		assert.False(t, result.Verified)
		assert.Empty(t, result.Error)
	})

	t.Run("verification skipped", func(t *testing.T) {
		verifier := &mockVerifier{CheckFunc: func(context.Context, core.Dependency) core.CheckResult {
			t.Fatal("verifier must not run")
			return core.CheckResult{}
		}}
		orch := newTestOrchestrator(core.RegionCN, &mockRunner{}, verifier)

		result, err := orch.InstallSingle(context.Background(), dep, false, nil)
		require.NoError(t, err)
		assert.True(t, result.Installed)
		assert.False(t, result.Verified)
	})

	t.Run("execution failure", func(t *testing.T) {
		runner := &mockRunner{RunSequenceFunc: func(context.Context, []string, string, core.ProgressFunc) error {
			return errors.New("boom")
		}}
		orch := newTestOrchestrator(core.RegionCN, runner, &mockVerifier{})

		result, err := orch.InstallSingle(context.Background(), dep, true, nil)
		require.NoError(t, err)
		assert.False(t, result.Installed)
		assert.Equal(t, "boom", result.Error)
		assert.False(t, result.Manual)
	})

	t.Run("manual", func(t *testing.T) {
		orch := newTestOrchestrator(core.RegionCN, &mockRunner{}, nil)
		result, err := orch.InstallSingle(context.Background(), core.Dependency{Key: "x", InstallCommand: core.NoCommand()}, true, nil)
		require.NoError(t, err)
		assert.False(t, result.Installed)
		assert.True(t, result.Manual)
	})
}

func TestInstallRecordsHistory(t *testing.T) {
	ctx := context.Background()
	database, err := db.New(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer database.Close()

	runner := &mockRunner{RunSequenceFunc: func(_ context.Context, commands []string, _ string, _ core.ProgressFunc) error {
		if commands[0] == "install-node" {
			return errors.New("exit status 1")
		}
		return nil
	}}
	orch := newTestOrchestrator(core.RegionInternational, runner, nil, WithHistory(database))

	_, err = orch.InstallFromManifest(ctx, threeDeps(), Observer{})
	require.NoError(t, err)

	entries, err := database.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	node, err := database.LastInstall(ctx, "node")
	require.NoError(t, err)
	assert.False(t, node.Success)
	assert.Equal(t, "exit status 1", node.Error)

	dotnet, err := database.LastInstall(ctx, "dotnet")
	require.NoError(t, err)
	assert.True(t, dotnet.Success)
}

func TestInstallWithEngine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	logger := zerolog.Nop()
	engine := executor.New(helpers.NewOSCommandRunner(), &logger)
	dir := t.TempDir()

	deps := []core.Dependency{
		{Key: "a", InstallCommand: core.SingleCommand("touch a")},
		{Key: "b", InstallCommand: core.SingleCommand("exit 3")},
		{Key: "c", InstallCommand: core.SingleCommand("touch c\necho done")},
	}

	var events []core.ProgressEvent
	orch := New(fixedRegion(core.RegionInternational), engine, nil, &logger, WithWorkDir(dir))
	result, err := orch.InstallFromManifest(context.Background(), deps, Observer{
		Events: func(ev core.ProgressEvent) { events = append(events, ev) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, result.Success)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b", result.Failed[0].Dependency)
	assert.FileExists(t, filepath.Join(dir, "a"))
	assert.FileExists(t, filepath.Join(dir, "c"))

	var terminal []core.EventType
	for _, ev := range events {
		if ev.Terminal() {
			terminal = append(terminal, ev.Type)
		}
	}
	assert.Equal(t, []core.EventType{core.EventInstallComplete, core.EventInstallError, core.EventInstallComplete}, terminal)
}
