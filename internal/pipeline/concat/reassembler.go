// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package concat joins transcoded segments into one file with the ffmpeg
// concat demuxer.
package concat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/pipeline/model"
)

// Reassembler writes a manifest and runs a stream-copy concat.
type Reassembler struct {
	runner    exec.Runner
	ffmpegBin string
	dir       string
}

// New returns a Reassembler that keeps its manifests in dir.
func New(runner exec.Runner, ffmpegBin, dir string) *Reassembler {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Reassembler{runner: runner, ffmpegBin: ffmpegBin, dir: dir}
}

// ManifestPath is the concat list file of a run.
func ManifestPath(dir string, rid model.RequestID) string {
	return filepath.Join(dir, "concat_"+string(rid)+".txt")
}

// BuildArgs constructs the ffmpeg concat arguments.
func (r *Reassembler) BuildArgs(manifest, output string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		output,
	}
}

// Reassemble concatenates segs, which must already be sorted by index and
// gap-free, into output. Every input is checked for existence before the
// tool runs so a missing file is reported by path.
func (r *Reassembler) Reassemble(ctx context.Context, rid model.RequestID, segs []model.TranscodedSegment, output string) (string, error) {
	logger := log.WithContext(ctx, log.WithComponent("reassembler"))

	if len(segs) == 0 {
		return "", &model.ReassemblyError{Err: errors.New("no segments to reassemble")}
	}
	if err := model.ValidateSequence(model.TranscodedIndices(segs)); err != nil {
		return "", &model.ReassemblyError{Err: fmt.Errorf("segments out of order: %w", err)}
	}
	for _, s := range segs {
		if _, err := os.Stat(s.Path); err != nil {
			return "", &model.ReassemblyError{Path: s.Path, Err: err}
		}
	}

	manifest := ManifestPath(r.dir, rid)
	if err := WriteManifest(manifest, segs); err != nil {
		return "", &model.ReassemblyError{Err: err}
	}

	cmd := exec.Command{
		Tool: "ffmpeg-concat",
		Bin:  r.ffmpegBin,
		Args: r.BuildArgs(manifest, output),
	}
	if _, err := r.runner.Run(ctx, cmd); err != nil {
		return "", &model.ReassemblyError{Diagnostic: exec.Diagnostic(err), Err: err}
	}

	fi, err := os.Stat(output)
	if err != nil {
		return "", &model.ReassemblyError{Err: fmt.Errorf("output not created: %w", err)}
	}
	if fi.Size() == 0 {
		return "", &model.ReassemblyError{Err: fmt.Errorf("output %s is empty", output)}
	}

	logger.Info().
		Str(log.FieldEvent, "concat.done").
		Str(log.FieldOutput, output).
		Int(log.FieldSegments, len(segs)).
		Int64("bytes", fi.Size()).
		Msg("segments reassembled")
	return output, nil
}

// WriteManifest atomically writes a concat demuxer list, one absolute path per
// line in slice order.
func WriteManifest(path string, segs []model.TranscodedSegment) error {
	var b strings.Builder
	for _, s := range segs {
		abs, err := filepath.Abs(s.Path)
		if err != nil {
			return fmt.Errorf("absolute path for %s: %w", s.Path, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending manifest: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.WriteString(b.String()); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace manifest: %w", err)
	}
	return nil
}
