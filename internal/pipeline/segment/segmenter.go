// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package segment splits a source file into fixed-duration, stream-copied segments.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/pipeline/model"
)

const (
	filePrefix = "segment_"
	fileExt    = ".ts"
)

// Segmenter runs the ffmpeg segment muxer with stream copy.
type Segmenter struct {
	runner    exec.Runner
	ffmpegBin string
	dir       string
}

// New returns a Segmenter writing segments into dir.
func New(runner exec.Runner, ffmpegBin, dir string) *Segmenter {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Segmenter{runner: runner, ffmpegBin: ffmpegBin, dir: dir}
}

// Pattern is the glob matching every segment file of a run in dir.
func Pattern(dir string, rid model.RequestID) string {
	return filepath.Join(dir, filePrefix+string(rid)+"_*"+fileExt)
}

// Path returns the segment file path for index.
func Path(dir string, rid model.RequestID, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s_%03d%s", filePrefix, rid, index, fileExt))
}

// BuildArgs constructs the ffmpeg arguments for splitting source into
// segments of the given duration. Streams are copied, never re-encoded.
func (s *Segmenter) BuildArgs(source string, duration time.Duration, rid model.RequestID) []string {
	outputPattern := filepath.Join(s.dir, filePrefix+string(rid)+"_%03d"+fileExt)
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", source,
		"-c", "copy",
		"-map", "0",
		"-f", "segment",
		"-segment_time", formatSeconds(duration),
		"-reset_timestamps", "1",
		outputPattern,
	}
}

// Segment splits source into segments of the given duration and returns them
// in ascending index order. The last segment may be shorter.
func (s *Segmenter) Segment(ctx context.Context, source string, duration time.Duration, rid model.RequestID) ([]model.Segment, error) {
	logger := log.WithContext(ctx, log.WithComponent("segmenter"))

	if duration <= 0 {
		return nil, &model.SegmentationError{Err: fmt.Errorf("segment duration must be positive, got %s", duration)}
	}
	if err := rid.Validate(); err != nil {
		return nil, &model.SegmentationError{Err: err}
	}
	fi, err := os.Stat(source)
	if err != nil {
		return nil, &model.SegmentationError{Err: fmt.Errorf("source %s: %w", source, err)}
	}
	if !fi.Mode().IsRegular() {
		return nil, &model.SegmentationError{Err: fmt.Errorf("source %s is not a regular file", source)}
	}

	cmd := exec.Command{
		Tool: "ffmpeg-segment",
		Bin:  s.ffmpegBin,
		Args: s.BuildArgs(source, duration, rid),
	}
	if _, err := s.runner.Run(ctx, cmd); err != nil {
		return nil, &model.SegmentationError{Diagnostic: exec.Diagnostic(err), Err: err}
	}

	segs, err := Collect(s.dir, rid)
	if err != nil {
		return nil, &model.SegmentationError{Err: err}
	}
	if len(segs) == 0 {
		return nil, &model.SegmentationError{Err: errors.New("no segments produced")}
	}

	logger.Info().
		Str(log.FieldEvent, "segment.done").
		Str(log.FieldSource, source).
		Int(log.FieldSegments, len(segs)).
		Dur("segment_duration", duration).
		Msg("source segmented")
	return segs, nil
}

// Collect lists the segment files of a run in dir, ordered by their numeric
// index. Indices must be dense from 0.
func Collect(dir string, rid model.RequestID) ([]model.Segment, error) {
	matches, err := filepath.Glob(Pattern(dir, rid))
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	prefix := filePrefix + string(rid) + "_"
	segs := make([]model.Segment, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		num := strings.TrimSuffix(strings.TrimPrefix(base, prefix), fileExt)
		idx, err := strconv.Atoi(num)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("unexpected segment file %s", base)
		}
		segs = append(segs, model.Segment{RequestID: rid, Index: idx, Path: m})
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].Index < segs[j].Index })

	if err := model.ValidateSequence(model.SegmentIndices(segs)); err != nil {
		return nil, fmt.Errorf("segment sequence has gaps: %w", err)
	}
	return segs, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
