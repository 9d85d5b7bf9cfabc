// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package exec runs external media tools (ffmpeg, ffprobe, spatial, spatialmkt)
// as argv invocations with a per-call timeout and process-group termination.
// Arguments are never passed through a shell.
package exec

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
	"github.com/ManuGH/spcut/internal/procgroup"
)

const (
	defaultKillGrace = 5 * time.Second
	defaultTailLines = 40
)

// ErrTimeout is returned when a tool exceeds the runner's per-call timeout.
var ErrTimeout = errors.New("tool timed out")

// Command is a single argv invocation of an external tool.
type Command struct {
	// Tool is the logical tool name used in logs and metrics. Defaults to the
	// base name of Bin.
	Tool  string
	Bin   string
	Args  []string
	Stdin string // written to the tool's stdin when non-empty
	Dir   string
}

func (c Command) toolName() string {
	if c.Tool != "" {
		return c.Tool
	}
	return filepath.Base(c.Bin)
}

// String renders the command for logs. It is not shell-safe and never executed.
func (c Command) String() string {
	return strings.Join(append([]string{c.Bin}, c.Args...), " ")
}

// Result describes a finished tool invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
	Stderr   string // tail of the tool's stderr
}

// ExitError reports a tool that exited with a non-zero status.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	if last := lastLine(e.Stderr); last != "" {
		msg += ": " + last
	}
	return msg
}

// Runner executes external tool commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero disables the per-call timeout.
	Timeout time.Duration
	// KillGrace is the delay between SIGTERM and SIGKILL on timeout or cancellation.
	KillGrace time.Duration
	// TailLines is the number of stderr lines kept for diagnostics.
	TailLines int
}

// NewRunner returns an ExecRunner with the given timeout and kill grace period.
func NewRunner(timeout, killGrace time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout, KillGrace: killGrace, TailLines: defaultTailLines}
}

// Run starts cmd, waits for it and classifies the outcome. A non-zero exit is
// an *ExitError, an expired per-call timeout wraps ErrTimeout and a canceled
// parent context wraps the context error.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	tool := c.toolName()
	logger := log.WithContext(ctx, log.WithComponent("exec")).With().Str(log.FieldTool, tool).Logger()

	parent := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if err := parent.Err(); err != nil {
		metrics.ObserveTool(tool, "canceled", 0)
		return Result{ExitCode: -1}, fmt.Errorf("%s: %w", tool, err)
	}

	ring := NewLineRing(r.tailLines())
	cmd := osexec.Command(c.Bin, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stderr = ring
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	cmd.WaitDelay = r.killGrace()
	procgroup.Set(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.ObserveTool(tool, "start_error", 0)
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", tool, err)
	}

	logger.Debug().
		Str(log.FieldEvent, "exec.started").
		Int(log.FieldPID, cmd.Process.Pid).
		Strs("args", c.Args).
		Msg("tool started")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var waitErr error
	interrupted := false
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		interrupted = true
		waitErr = procgroup.Terminate(cmd, waitCh, r.killGrace())
	}
	ring.Flush()

	res := Result{Duration: time.Since(start), Stderr: ring.Tail(r.tailLines())}

	if interrupted {
		res.ExitCode = -1
		if perr := parent.Err(); perr != nil {
			metrics.ObserveTool(tool, "canceled", res.Duration)
			logger.Debug().
				Str(log.FieldEvent, "exec.canceled").
				Dur("duration", res.Duration).
				Msg("tool interrupted by cancellation")
			return res, fmt.Errorf("%s: %w", tool, perr)
		}
		metrics.ObserveTool(tool, "timeout", res.Duration)
		logger.Warn().
			Str(log.FieldEvent, "exec.timeout").
			Dur("timeout", r.Timeout).
			Str("stderr_tail", lastLine(res.Stderr)).
			Msg("tool exceeded timeout and was terminated")
		return res, fmt.Errorf("%s after %s: %w", tool, r.Timeout, ErrTimeout)
	}

	if waitErr != nil {
		var ee *osexec.ExitError
		if !errors.As(waitErr, &ee) {
			metrics.ObserveTool(tool, "wait_error", res.Duration)
			return res, fmt.Errorf("wait %s: %w", tool, waitErr)
		}
		res.ExitCode = ee.ExitCode()
		metrics.ObserveTool(tool, "exit_nonzero", res.Duration)
		logger.Warn().
			Str(log.FieldEvent, "exec.failed").
			Int(log.FieldExitCode, res.ExitCode).
			Dur("duration", res.Duration).
			Str("stderr_tail", lastLine(res.Stderr)).
			Msg("tool exited with error")
		return res, &ExitError{Tool: tool, Code: res.ExitCode, Stderr: res.Stderr}
	}

	metrics.ObserveTool(tool, "ok", res.Duration)
	logger.Debug().
		Str(log.FieldEvent, "exec.finished").
		Dur("duration", res.Duration).
		Msg("tool finished")
	return res, nil
}

func (r *ExecRunner) killGrace() time.Duration {
	if r.KillGrace > 0 {
		return r.KillGrace
	}
	return defaultKillGrace
}

func (r *ExecRunner) tailLines() int {
	if r.TailLines > 0 {
		return r.TailLines
	}
	return defaultTailLines
}

// Diagnostic extracts the most useful human-readable detail from a Run error:
// the stderr tail for non-zero exits, otherwise the error text.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var ee *ExitError
	if errors.As(err, &ee) && strings.TrimSpace(ee.Stderr) != "" {
		return ee.Stderr
	}
	return err.Error()
}

// IsCanceled reports whether err stems from a canceled context rather than
// from the tool itself.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
