package script

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultShell is used when a Runner is created without one.
const DefaultShell = "/bin/sh"

// Runner executes scripts through a shell.
type Runner struct {
	shell  string
	env    []string
	logger zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithShell sets the shell used to interpret commands.
func WithShell(shell string) RunnerOption {
	return func(r *Runner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// WithEnv appends KEY=VALUE pairs to the environment of every command.
func WithEnv(env ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithLogger sets the logger used for execution diagnostics.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a shell runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		shell:  DefaultShell,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the script and returns its output stream. The channel is closed
// once the script can produce no more output, either because it finished or
// because ctx was cancelled.
func (r *Runner) Run(ctx context.Context, s Script) (<-chan Output, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	out := make(chan Output)

	go func() {
		defer close(out)

		switch s.Mode {
		case ModeOnce:
			r.runOnce(ctx, s, out)
		case ModePoll:
			r.poll(ctx, s, out)
		case ModeWatch:
			r.watch(ctx, s, out)
		}
	}()

	return out, nil
}

func (r *Runner) command(ctx context.Context, s Script) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.shell, "-c", s.Cmd)
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}
	cmd.WaitDelay = time.Second
	killProcessGroup(cmd)
	return cmd
}

// runOnce runs the command to completion and emits its trimmed stdout.
func (r *Runner) runOnce(ctx context.Context, s Script, out chan<- Output) bool {
	cmd := r.command(ctx, s)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	r.logger.Debug().
		Str("command", s.Cmd).
		Int("stdout_len", stdout.Len()).
		Int("stderr_len", stderr.Len()).
		Dur("duration", time.Since(start)).
		Msg("command executed")

	if ctx.Err() != nil {
		return false
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		if !send(ctx, out, Output{Stream: Stderr, Text: msg}) {
			return false
		}
	}

	if err != nil {
		return send(ctx, out, Output{Stream: Stderr, Text: exitMessage(err)})
	}

	return send(ctx, out, Output{Stream: Stdout, Text: strings.TrimSpace(stdout.String())})
}

func (r *Runner) poll(ctx context.Context, s Script, out chan<- Output) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if !r.runOnce(ctx, s, out) {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// watch streams every line the command prints until it exits.
func (r *Runner) watch(ctx context.Context, s Script, out chan<- Output) {
	cmd := r.command(ctx, s)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		send(ctx, out, Output{Stream: Stderr, Text: fmt.Sprintf("failed to open stdout: %v", err)})
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		send(ctx, out, Output{Stream: Stderr, Text: fmt.Sprintf("failed to open stderr: %v", err)})
		return
	}

	if err := cmd.Start(); err != nil {
		send(ctx, out, Output{Stream: Stderr, Text: fmt.Sprintf("failed to start command: %v", err)})
		return
	}

	r.logger.Debug().Str("command", s.Cmd).Int("pid", cmd.Process.Pid).Msg("watching command")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.scanLines(ctx, stdout, Stdout, out)
	}()
	go func() {
		defer wg.Done()
		r.scanLines(ctx, stderr, Stderr, out)
	}()
	wg.Wait()

	err = cmd.Wait()
	if err != nil && ctx.Err() == nil {
		send(ctx, out, Output{Stream: Stderr, Text: exitMessage(err)})
	}
}

func (r *Runner) scanLines(ctx context.Context, rd io.Reader, stream Stream, out chan<- Output) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		if !send(ctx, out, Output{Stream: stream, Text: scanner.Text()}) {
			// keep draining so the process never blocks on a full pipe
			_, _ = io.Copy(io.Discard, rd)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		r.logger.Warn().Err(err).Str("stream", string(stream)).Msg("failed to read command output")
	}
}

func send(ctx context.Context, out chan<- Output, o Output) bool {
	select {
	case out <- o:
		return true
	case <-ctx.Done():
		return false
	}
}

func exitMessage(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("command exited with status %d", exitErr.ExitCode())
	}
	return fmt.Sprintf("failed to execute command: %v", err)
}
