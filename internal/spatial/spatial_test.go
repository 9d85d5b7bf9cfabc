// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package spatial

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/testutil"
)

func TestMakeCommand(t *testing.T) {
	cmd := MakeCommand("/opt/bin/spatial", DefaultMakeSettings(), "in.mov", "out.mov")

	assert.Equal(t, ToolMake, cmd.Tool)
	assert.Equal(t, "/opt/bin/spatial", cmd.Bin)
	assert.Equal(t, "y\n", cmd.Stdin)
	assert.Equal(t, []string{
		"make", "-i", "in.mov", "-f", "ou", "-o", "out.mov",
		"--cdist", "19.24", "--hfov", "63.4", "--hadjust", "0.02",
		"--primary", "right", "--projection", "rect",
	}, cmd.Args)
}

func TestMakeCommand_OmitsEmptyProjection(t *testing.T) {
	s := DefaultMakeSettings()
	s.Projection = ""
	cmd := MakeCommand("", s, "a", "b")
	assert.Equal(t, "spatial", cmd.Bin)
	assert.NotContains(t, cmd.Args, "--projection")
}

func TestSplitCommand(t *testing.T) {
	in := filepath.Join("/work", "job1_clip.MOV")
	cmd := SplitCommand("", in)

	assert.Equal(t, "spatialmkt", cmd.Bin)
	assert.Equal(t, []string{"--input-file", in}, cmd.Args)
	assert.Equal(t, "\n", cmd.Stdin)
	assert.Equal(t, "/work", cmd.Dir)

	left, right := SplitOutputs(in)
	assert.Equal(t, "/work/job1_clip_LEFT.mov", left)
	assert.Equal(t, "/work/job1_clip_RIGHT.mov", right)
}

func TestSplitCommand_RelativePathsResolved(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	cmd := SplitCommand("./tools/spatialmkt", filepath.Join("work", "clip.mov"))
	assert.Equal(t, filepath.Join(cwd, "tools", "spatialmkt"), cmd.Bin)
	assert.Equal(t, []string{"--input-file", filepath.Join(cwd, "work", "clip.mov")}, cmd.Args)
	assert.Equal(t, filepath.Join(cwd, "work"), cmd.Dir)

	// Bare names are left for PATH lookup.
	assert.Equal(t, "spatialmkt", SplitCommand("spatialmkt", "/work/clip.mov").Bin)
}

func TestMergeCommand(t *testing.T) {
	cmd := MergeCommand("ffmpeg", DefaultMergeSettings(), "l.mov", "r.mov", "o.mov")
	assert.Equal(t, ToolMerge, cmd.Tool)
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "l.mov", "-i", "r.mov",
		"-filter_complex", "[0:v]scale=1280:720[top];[1:v]scale=1280:720[bottom];[top][bottom]vstack=inputs=2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-s", "1280x1440",
		"o.mov",
	}, cmd.Args)
}

func TestTools_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fake := &testutil.FakeMedia{}
	tools := &Tools{Runner: fake}

	in := filepath.Join(dir, "clip.mov")
	testutil.WriteMedia(t, in, 12)

	out := filepath.Join(dir, "clip_done.mov")
	require.NoError(t, tools.Make(context.Background(), DefaultMakeSettings(), in, out))

	left, right, err := tools.Split(context.Background(), out)
	require.NoError(t, err)
	assert.FileExists(t, left)
	assert.FileExists(t, right)

	merged := filepath.Join(dir, "merged.mov")
	require.NoError(t, tools.Merge(context.Background(), DefaultMergeSettings(), left, right, merged))
	d, err := testutil.ReadMedia(merged)
	require.NoError(t, err)
	assert.InDelta(t, 12, d, 0.001)
}

func TestTools_ToolFailure(t *testing.T) {
	dir := t.TempDir()
	fake := &testutil.FakeMedia{Fail: func(cmd exec.Command) string {
		if cmd.Tool == ToolMake {
			return "error: input is not over/under"
		}
		return ""
	}}
	tools := &Tools{Runner: fake}
	in := filepath.Join(dir, "clip.mov")
	testutil.WriteMedia(t, in, 5)

	err := tools.Make(context.Background(), DefaultMakeSettings(), in, filepath.Join(dir, "out.mov"))
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ToolMake, te.Tool)
	assert.Contains(t, err.Error(), "not over/under")
}

func TestTools_MissingOutput(t *testing.T) {
	noop := runnerFunc(func(context.Context, exec.Command) (exec.Result, error) {
		return exec.Result{}, nil
	})
	tools := &Tools{Runner: noop}

	_, _, err := tools.Split(context.Background(), filepath.Join(t.TempDir(), "clip.mov"))
	require.ErrorIs(t, err, ErrMissingOutput)
}

type runnerFunc func(ctx context.Context, cmd exec.Command) (exec.Result, error)

func (f runnerFunc) Run(ctx context.Context, cmd exec.Command) (exec.Result, error) {
	return f(ctx, cmd)
}
