// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package spatial

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/pipeline/exec"
)

// ErrMissingOutput is returned when a tool exits cleanly without producing
// the file it was asked for.
var ErrMissingOutput = errors.New("tool produced no output")

// ToolError wraps a failed stereo tool invocation with its stderr tail.
type ToolError struct {
	Tool       string
	Diagnostic string
	Err        error
}

func (e *ToolError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Diagnostic)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Tools runs the stereo commands through a Runner.
type Tools struct {
	Runner     exec.Runner
	SpatialBin string
	SplitBin   string
	FFmpegBin  string
}

// Make runs `spatial make` and verifies that out exists.
func (t *Tools) Make(ctx context.Context, s MakeSettings, in, out string) error {
	return t.run(ctx, MakeCommand(t.SpatialBin, s, in, out), out)
}

// Split runs spatialmkt and returns the left and right eye paths.
func (t *Tools) Split(ctx context.Context, in string) (left, right string, err error) {
	left, right = SplitOutputs(in)
	if err := t.run(ctx, SplitCommand(t.SplitBin, in), left, right); err != nil {
		return left, right, err
	}
	return left, right, nil
}

// Merge stacks left over right into out.
func (t *Tools) Merge(ctx context.Context, s MergeSettings, left, right, out string) error {
	return t.run(ctx, MergeCommand(t.FFmpegBin, s, left, right, out), out)
}

func (t *Tools) run(ctx context.Context, cmd exec.Command, outputs ...string) error {
	logger := log.WithComponentFromContext(ctx, "spatial")
	res, err := t.Runner.Run(ctx, cmd)
	if err != nil {
		return &ToolError{Tool: cmd.Tool, Diagnostic: exec.Diagnostic(err), Err: err}
	}
	for _, p := range outputs {
		fi, err := os.Stat(p)
		if err != nil || fi.Size() == 0 {
			return &ToolError{Tool: cmd.Tool, Err: fmt.Errorf("%w: %s", ErrMissingOutput, p)}
		}
	}
	logger.Debug().
		Str(log.FieldEvent, "spatial.done").
		Str(log.FieldTool, cmd.Tool).
		Dur("duration", res.Duration).
		Msg("stereo tool finished")
	return nil
}
