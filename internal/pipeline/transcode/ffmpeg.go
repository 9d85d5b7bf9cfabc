// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/pipeline/model"
)

const outputPrefix = "processed_"

// Settings are the per-segment encoder parameters.
type Settings struct {
	VideoCodec  string
	Preset      string
	CRF         int
	PixelFormat string // applied as -vf format=<pix_fmt>; empty keeps the source format
	AudioCodec  string
	MovFlags    string // empty omits -movflags
}

// DefaultSettings returns the encoder parameters used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		VideoCodec:  "libx264",
		Preset:      "ultrafast",
		CRF:         23,
		PixelFormat: "yuv420p",
		AudioCodec:  "copy",
		MovFlags:    "+faststart",
	}
}

// FFmpeg transcodes one segment per ffmpeg invocation.
type FFmpeg struct {
	runner   exec.Runner
	bin      string
	dir      string
	settings Settings
}

// NewFFmpeg returns a Transcoder writing its outputs into dir.
func NewFFmpeg(runner exec.Runner, bin, dir string, settings Settings) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{runner: runner, bin: bin, dir: dir, settings: settings}
}

// OutputPath is where the transcoded counterpart of seg is written.
func OutputPath(dir string, seg model.Segment) string {
	return filepath.Join(dir, outputPrefix+string(seg.RequestID)+"_"+filepath.Base(seg.Path))
}

// Pattern is the glob matching every transcoded segment of a run in dir.
func Pattern(dir string, rid model.RequestID) string {
	return filepath.Join(dir, outputPrefix+string(rid)+"_*")
}

// BuildArgs constructs the ffmpeg arguments for transcoding in to out.
func (f *FFmpeg) BuildArgs(in, out string) []string {
	s := f.settings
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", in}
	if s.VideoCodec != "" {
		args = append(args, "-c:v", s.VideoCodec)
	}
	if s.Preset != "" {
		args = append(args, "-preset", s.Preset)
	}
	if s.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(s.CRF))
	}
	if s.PixelFormat != "" {
		args = append(args, "-vf", "format="+s.PixelFormat)
	}
	if s.AudioCodec != "" {
		args = append(args, "-c:a", s.AudioCodec)
	}
	if s.MovFlags != "" {
		args = append(args, "-movflags", s.MovFlags)
	}
	return append(args, out)
}

// TranscodeOne re-encodes a single segment.
func (f *FFmpeg) TranscodeOne(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error) {
	out := OutputPath(f.dir, seg)
	cmd := exec.Command{
		Tool: "ffmpeg-transcode",
		Bin:  f.bin,
		Args: f.BuildArgs(seg.Path, out),
	}
	if _, err := f.runner.Run(ctx, cmd); err != nil {
		return model.TranscodedSegment{}, &model.TranscodeError{
			Index:      seg.Index,
			Diagnostic: exec.Diagnostic(err),
			Err:        err,
			Canceled:   exec.IsCanceled(err),
		}
	}
	if _, err := os.Stat(out); err != nil {
		return model.TranscodedSegment{}, &model.TranscodeError{
			Index: seg.Index,
			Err:   fmt.Errorf("output not written: %w", err),
		}
	}
	return model.TranscodedSegment{RequestID: seg.RequestID, Index: seg.Index, Path: out}, nil
}
