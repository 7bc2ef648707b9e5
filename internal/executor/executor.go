// Package executor runs shell command lines as subprocesses, streaming
// their output line by line to a progress sink.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds each install command
	DefaultTimeout = 300 * time.Second

	// waitDelay is how long Wait keeps the output pipes open after the
	// process was killed, for grandchildren that inherited them
	waitDelay = 2 * time.Second

	maxLineSize   = 1024 * 1024
	stderrTailLen = 20
)

// ErrTimeout is wrapped by CommandError when a command exceeds its timeout
var ErrTimeout = errors.New("command timed out")

// Line is one line of subprocess output. Stderr lines are informational:
// many installers report progress there.
type Line struct {
	Text   string
	Stderr bool
}

// OutputFunc receives output lines in arrival order
type OutputFunc func(Line)

// CommandError describes a failed command of a sequence
type CommandError struct {
	Index    int
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %d (%q)", e.Index, e.Command)
	switch {
	case e.TimedOut:
		b.WriteString(" timed out")
	case e.ExitCode > 0:
		fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
	default:
		fmt.Fprintf(&b, " failed: %v", e.Err)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Engine executes command lines through a helpers.CommandRunner
type Engine struct {
	runner  helpers.CommandRunner
	timeout time.Duration
	log     *zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Engine
func New(runner helpers.CommandRunner, log *zerolog.Logger, opts ...Option) *Engine {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	e := &Engine{
		runner:  runner,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-command timeout
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Run executes one command line in dir (empty for the current directory)
// and returns nil only when it exits with code 0. Output is forwarded to
// onOutput as it arrives.
func (e *Engine) Run(ctx context.Context, command, dir string, onOutput OutputFunc) error {
	return e.run(ctx, 0, command, dir, onOutput)
}

func (e *Engine) run(ctx context.Context, index int, command, dir string, onOutput OutputFunc) error {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	fail := func(exitCode int, stderr string, err error) *CommandError {
		ce := &CommandError{
			Index:    index,
			Command:  command,
			ExitCode: exitCode,
			Stderr:   stderr,
			Err:      err,
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			ce.TimedOut = true
			ce.Err = fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return ce
	}

	cmd := e.runner.PrepareShell(runCtx, dir, command)
	if cmd == nil {
		return fail(-1, "", errors.New("failed to prepare command"))
	}
	cmd.WaitDelay = waitDelay

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	e.log.Debug().Int("index", index).Str("command", command).Str("dir", dir).Msg("starting command")
	start := time.Now()

	if err := cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		return fail(-1, "", fmt.Errorf("start: %w", err))
	}

	lines := make(chan Line)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(&wg, outR, false, lines)
	go scanLines(&wg, errR, true, lines)
	go func() {
		wg.Wait()
		close(lines)
	}()

	waitDone := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		outW.Close()
		errW.Close()
		waitDone <- err
	}()

	var tail []string
	for line := range lines {
		if onOutput != nil {
			onOutput(line)
		}
		if line.Stderr {
			tail = append(tail, line.Text)
			if len(tail) > stderrTailLen {
				tail = tail[1:]
			}
		}
	}

	waitErr := <-waitDone
	elapsed := time.Since(start)
	if waitErr == nil {
		e.log.Debug().Int("index", index).Dur("elapsed", elapsed).Msg("command completed")
		return nil
	}

	ce := fail(helpers.ExitCode(waitErr), strings.Join(tail, "\n"), waitErr)
	e.log.Warn().
		Int("index", index).
		Str("command", command).
		Int("exit_code", ce.ExitCode).
		Bool("timed_out", ce.TimedOut).
		Dur("elapsed", elapsed).
		Msg("command failed")
	return ce
}

func scanLines(wg *sync.WaitGroup, r io.Reader, stderr bool, out chan<- Line) {
	defer wg.Done()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		out <- Line{Text: strings.TrimRight(sc.Text(), "\r"), Stderr: stderr}
	}
	// Keep the writer unblocked after an oversized line
	_, _ = io.Copy(io.Discard, r)
}

// RunSequence runs commands strictly in order and stops at the first
// failure, which is returned as a *CommandError carrying its index. Every
// step is reported to onProgress; the last event is install-complete or
// install-error.
func (e *Engine) RunSequence(ctx context.Context, commands []string, dir string, onProgress core.ProgressFunc) error {
	total := len(commands)

	for i, command := range commands {
		onProgress.Emit(core.ProgressEvent{
			Type:          core.EventCommandStart,
			CommandIndex:  i,
			TotalCommands: total,
			Command:       command,
		})

		err := e.run(ctx, i, command, dir, func(l Line) {
			ev := core.ProgressEvent{
				Type:          core.EventCommandOutput,
				CommandIndex:  i,
				TotalCommands: total,
				Command:       command,
				Output:        l.Text,
			}
			if l.Stderr {
				ev.Type = core.EventCommandError
				ev.Output = ""
				ev.Error = l.Text
			}
			onProgress.Emit(ev)
		})
		if err != nil {
			onProgress.Emit(core.ProgressEvent{
				Type:          core.EventInstallError,
				CommandIndex:  i,
				TotalCommands: total,
				Command:       command,
				Error:         err.Error(),
			})
			return err
		}

		onProgress.Emit(core.ProgressEvent{
			Type:          core.EventCommandComplete,
			CommandIndex:  i,
			TotalCommands: total,
			Command:       command,
		})
	}

	onProgress.Emit(core.ProgressEvent{
		Type:          core.EventInstallComplete,
		CommandIndex:  total,
		TotalCommands: total,
	})
	return nil
}

// Stream runs the sequence in the background and returns its events as a
// finite ordered channel, closed after the terminal event. The channel is
// single-use. Cancelling ctx stops the sequence and closes the channel
// even if the consumer stopped reading.
func (e *Engine) Stream(ctx context.Context, commands []string, dir string) <-chan core.ProgressEvent {
	events := make(chan core.ProgressEvent, 16)

	go func() {
		defer close(events)
		_ = e.RunSequence(ctx, commands, dir, func(ev core.ProgressEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()

	return events
}
