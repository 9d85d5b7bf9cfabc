// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package spatial builds and runs the stereo video tools: `spatial make`
// for side-by-side to MV-HEVC, `spatialmkt` for splitting a spatial video
// into its eyes and an ffmpeg vstack for merging two eyes.
package spatial

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/spcut/internal/pipeline/exec"
)

// Logical tool names used in logs and metrics.
const (
	ToolMake  = "spatial-make"
	ToolSplit = "spatialmkt-split"
	ToolMerge = "ffmpeg-merge"
)

// MakeSettings are the `spatial make` camera parameters.
type MakeSettings struct {
	Format     string // input layout, "ou" for over/under
	CDist      float64
	HFOV       float64
	HAdjust    float64
	Primary    string
	Projection string
}

// DefaultMakeSettings matches the parameters the service has always used.
func DefaultMakeSettings() MakeSettings {
	return MakeSettings{
		Format:     "ou",
		CDist:      19.24,
		HFOV:       63.4,
		HAdjust:    0.02,
		Primary:    "right",
		Projection: "rect",
	}
}

// MergeSettings size and encode the stacked output. Width and Height apply
// to each eye.
type MergeSettings struct {
	Width       int
	Height      int
	VideoCodec  string
	PixelFormat string
}

// DefaultMergeSettings returns 1280x720 per eye, H.264 yuv420p.
func DefaultMergeSettings() MergeSettings {
	return MergeSettings{Width: 1280, Height: 720, VideoCodec: "libx264", PixelFormat: "yuv420p"}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MakeCommand converts an over/under stereo input into a spatial video.
// spatial asks for overwrite confirmation, answered on stdin.
func MakeCommand(bin string, s MakeSettings, in, out string) exec.Command {
	if bin == "" {
		bin = "spatial"
	}
	args := []string{
		"make",
		"-i", in,
		"-f", s.Format,
		"-o", out,
		"--cdist", formatFloat(s.CDist),
		"--hfov", formatFloat(s.HFOV),
		"--hadjust", formatFloat(s.HAdjust),
		"--primary", s.Primary,
	}
	if s.Projection != "" {
		args = append(args, "--projection", s.Projection)
	}
	return exec.Command{Tool: ToolMake, Bin: bin, Args: args, Stdin: "y\n"}
}

// SplitOutputs returns the files spatialmkt writes next to in.
func SplitOutputs(in string) (left, right string) {
	dir := filepath.Dir(in)
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(dir, stem+"_LEFT.mov"), filepath.Join(dir, stem+"_RIGHT.mov")
}

// SplitCommand extracts the left and right eye of a spatial video. The tool
// waits for a keypress before exiting. It runs inside the input's directory,
// so a relative binary path and the input are made absolute first.
func SplitCommand(bin, in string) exec.Command {
	if bin == "" {
		bin = "spatialmkt"
	}
	if strings.ContainsRune(bin, filepath.Separator) {
		bin = absPath(bin)
	}
	in = absPath(in)
	return exec.Command{
		Tool:  ToolSplit,
		Bin:   bin,
		Args:  []string{"--input-file", in},
		Stdin: "\n",
		Dir:   filepath.Dir(in),
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// MergeCommand stacks left on top of right, each scaled to the configured
// per-eye size.
func MergeCommand(ffmpeg string, s MergeSettings, left, right, out string) exec.Command {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d[top];[1:v]scale=%d:%d[bottom];[top][bottom]vstack=inputs=2",
		s.Width, s.Height, s.Width, s.Height,
	)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", left,
		"-i", right,
		"-filter_complex", filter,
		"-c:v", s.VideoCodec,
		"-pix_fmt", s.PixelFormat,
		"-s", fmt.Sprintf("%dx%d", s.Width, s.Height*2),
		out,
	}
	return exec.Command{Tool: ToolMerge, Bin: ffmpeg, Args: args}
}
