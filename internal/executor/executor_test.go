package executor

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executor tests script a POSIX sh")
	}
	logger := zerolog.Nop()
	return New(helpers.NewOSCommandRunner(), &logger, opts...)
}

type recorder struct {
	mu     sync.Mutex
	events []core.ProgressEvent
}

func (r *recorder) emit(ev core.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []core.EventType {
	out := make([]core.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func TestRun(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("success streams both streams", func(t *testing.T) {
		var lines []Line
		err := engine.Run(context.Background(), "echo one; echo two >&2; echo three", "", func(l Line) {
			lines = append(lines, l)
		})
		require.NoError(t, err)
		require.Len(t, lines, 3)
		assert.Contains(t, lines, Line{Text: "one"})
		assert.Contains(t, lines, Line{Text: "two", Stderr: true})
		assert.Contains(t, lines, Line{Text: "three"})
	})

	t.Run("stdout order preserved", func(t *testing.T) {
		var got []string
		err := engine.Run(context.Background(), "for i in 1 2 3 4 5; do echo $i; done", "", func(l Line) {
			got = append(got, l.Text)
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
	})

	t.Run("non-zero exit fails", func(t *testing.T) {
		err := engine.Run(context.Background(), "echo boom >&2; exit 7", "", nil)
		require.Error(t, err)

		var ce *CommandError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 7, ce.ExitCode)
		assert.Equal(t, "boom", ce.Stderr)
		assert.False(t, ce.TimedOut)
		assert.Contains(t, err.Error(), "exited with code 7")
	})

	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		var out []string
		err := engine.Run(context.Background(), "pwd", dir, func(l Line) { out = append(out, l.Text) })
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.True(t, strings.HasSuffix(out[0], dir) || strings.Contains(out[0], dir))
	})

	t.Run("missing command fails", func(t *testing.T) {
		err := engine.Run(context.Background(), "definitely-not-a-command-xyz", "", nil)
		var ce *CommandError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 127, ce.ExitCode)
	})
}

func TestRunTimeout(t *testing.T) {
	engine := newTestEngine(t, WithTimeout(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, engine.Timeout())

	start := time.Now()
	err := engine.Run(context.Background(), "exec sleep 10", "", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.TimedOut)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunPrepareFailure(t *testing.T) {
	logger := zerolog.Nop()
	runner := &helpers.MockCommandRunner{
		PrepareShellFunc: func(context.Context, string, string) *exec.Cmd { return nil },
	}
	engine := New(runner, &logger)

	err := engine.Run(context.Background(), "anything", "", nil)
	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, -1, ce.ExitCode)
}

func TestRunSequence(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("all succeed", func(t *testing.T) {
		rec := &recorder{}
		err := engine.RunSequence(context.Background(), []string{"echo a", "echo b >&2"}, "", rec.emit)
		require.NoError(t, err)

		assert.Equal(t, []core.EventType{
			core.EventCommandStart,
			core.EventCommandOutput,
			core.EventCommandComplete,
			core.EventCommandStart,
			core.EventCommandError,
			core.EventCommandComplete,
			core.EventInstallComplete,
		}, rec.types())

		assert.Equal(t, "a", rec.events[1].Output)
		assert.Equal(t, "b", rec.events[4].Error)
		assert.Equal(t, 1, rec.events[3].CommandIndex)
		for _, ev := range rec.events {
			assert.Equal(t, 2, ev.TotalCommands)
		}
		assert.True(t, rec.events[len(rec.events)-1].Terminal())
	})

	t.Run("first failure aborts", func(t *testing.T) {
		rec := &recorder{}
		dir := t.TempDir()
		err := engine.RunSequence(context.Background(), []string{"true", "exit 2", "touch ran"}, dir, rec.emit)
		require.Error(t, err)

		var ce *CommandError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 1, ce.Index)
		assert.Equal(t, "exit 2", ce.Command)

		last := rec.events[len(rec.events)-1]
		assert.Equal(t, core.EventInstallError, last.Type)
		assert.Equal(t, 1, last.CommandIndex)
		assert.NotEmpty(t, last.Error)
		assert.NoFileExists(t, dir+"/ran")
	})

	t.Run("empty sequence completes", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, engine.RunSequence(context.Background(), nil, "", rec.emit))
		assert.Equal(t, []core.EventType{core.EventInstallComplete}, rec.types())
	})

	t.Run("nil sink", func(t *testing.T) {
		assert.NoError(t, engine.RunSequence(context.Background(), []string{"true"}, "", nil))
	})
}

func TestStream(t *testing.T) {
	engine := newTestEngine(t)

	var got []core.ProgressEvent
	for ev := range engine.Stream(context.Background(), []string{"echo x", "echo y"}, "") {
		got = append(got, ev)
	}

	require.NotEmpty(t, got)
	assert.Equal(t, core.EventInstallComplete, got[len(got)-1].Type)

	var outputs []string
	for _, ev := range got {
		if ev.Type == core.EventCommandOutput {
			outputs = append(outputs, ev.Output)
		}
	}
	assert.Equal(t, []string{"x", "y"}, outputs)
}

func TestStreamFailure(t *testing.T) {
	engine := newTestEngine(t)

	var last core.ProgressEvent
	for ev := range engine.Stream(context.Background(), []string{"false", "echo never"}, "") {
		last = ev
		assert.NotEqual(t, "never", ev.Output)
	}
	assert.Equal(t, core.EventInstallError, last.Type)
	assert.Equal(t, 0, last.CommandIndex)
}

func TestStreamCancelledConsumer(t *testing.T) {
	engine := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	events := engine.Stream(ctx, []string{"for i in $(seq 1 200); do echo $i; done"}, "")
	<-events
	cancel()

	done := make(chan struct{})
	go func() {
		for range events {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}

func TestCommandErrorMessage(t *testing.T) {
	ce := &CommandError{Index: 2, Command: "apt-get install x", ExitCode: -1, Err: errors.New("start: no such file")}
	assert.Equal(t, `command 2 ("apt-get install x") failed: start: no such file`, ce.Error())
	assert.EqualError(t, errors.Unwrap(ce), "start: no such file")
}
