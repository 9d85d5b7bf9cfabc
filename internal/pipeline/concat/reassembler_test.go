// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package concat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/pipeline/model"
	"github.com/ManuGH/spcut/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegments(t *testing.T, dir string, rid model.RequestID, durations ...float64) []model.TranscodedSegment {
	t.Helper()
	out := make([]model.TranscodedSegment, len(durations))
	for i, d := range durations {
		p := filepath.Join(dir, fmt.Sprintf("processed_%s_segment_%s_%03d.ts", rid, rid, i))
		testutil.WriteMedia(t, p, d)
		out[i] = model.TranscodedSegment{RequestID: rid, Index: i, Path: p}
	}
	return out
}

func TestReassemble_OrderAndOutput(t *testing.T) {
	dir := t.TempDir()
	rid := model.RequestID("r1")
	segs := writeSegments(t, dir, rid, 10, 10, 5)

	fake := &testutil.FakeMedia{}
	r := New(fake, "ffmpeg", dir)
	out := filepath.Join(dir, "out.mov")

	got, err := r.Reassemble(context.Background(), rid, segs, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)

	d, err := testutil.ReadMedia(out)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, d, 0.001)

	manifests := fake.Manifests()
	require.Len(t, manifests, 1)
	assert.Equal(t, []string{segs[0].Path, segs[1].Path, segs[2].Path}, manifests[0])

	data, err := os.ReadFile(ManifestPath(dir, rid))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("file '%s'\nfile '%s'\nfile '%s'\n", segs[0].Path, segs[1].Path, segs[2].Path), string(data))
}

func TestReassemble_MissingInputDetectedBeforeTool(t *testing.T) {
	dir := t.TempDir()
	rid := model.RequestID("r1")
	segs := writeSegments(t, dir, rid, 10, 10, 5)
	require.NoError(t, os.Remove(segs[1].Path))

	fake := &testutil.FakeMedia{}
	_, err := New(fake, "ffmpeg", dir).Reassemble(context.Background(), rid, segs, filepath.Join(dir, "out.mov"))

	var re *model.ReassemblyError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, segs[1].Path, re.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, fake.Calls())
	assert.NoFileExists(t, ManifestPath(dir, rid))
}

func TestReassemble_RejectsUnorderedInput(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "r1", 1, 1)
	segs[0], segs[1] = segs[1], segs[0]

	_, err := New(&testutil.FakeMedia{}, "ffmpeg", dir).Reassemble(context.Background(), "r1", segs, filepath.Join(dir, "o"))
	assert.ErrorContains(t, err, "out of order")

	_, err = New(&testutil.FakeMedia{}, "ffmpeg", dir).Reassemble(context.Background(), "r1", nil, filepath.Join(dir, "o"))
	assert.ErrorContains(t, err, "no segments")
}

func TestReassemble_ToolFailure(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "r1", 3)

	fake := &testutil.FakeMedia{Fail: func(exec.Command) string { return "Non-monotonous DTS" }}
	_, err := New(fake, "ffmpeg", dir).Reassemble(context.Background(), "r1", segs, filepath.Join(dir, "o.mov"))
	assert.EqualError(t, err, "ReassemblyError: Non-monotonous DTS")
}

type runnerFunc func(ctx context.Context, cmd exec.Command) (exec.Result, error)

func (f runnerFunc) Run(ctx context.Context, cmd exec.Command) (exec.Result, error) { return f(ctx, cmd) }

func TestReassemble_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "r1", 3)

	empty := runnerFunc(func(_ context.Context, c exec.Command) (exec.Result, error) {
		return exec.Result{}, os.WriteFile(c.Args[len(c.Args)-1], nil, 0o644)
	})
	_, err := New(empty, "ffmpeg", dir).Reassemble(context.Background(), "r1", segs, filepath.Join(dir, "o.mov"))
	assert.ErrorContains(t, err, "is empty")
}

func TestReassemble_Canceled(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "r1", 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&testutil.FakeMedia{}, "ffmpeg", dir).Reassemble(ctx, "r1", segs, filepath.Join(dir, "o.mov"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "o.mov"))
}

func TestWriteManifest_EscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "it's.ts")
	manifest := filepath.Join(dir, "list.txt")

	require.NoError(t, WriteManifest(manifest, []model.TranscodedSegment{{Index: 0, Path: p}}))
	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Equal(t, "file '"+filepath.Join(dir, `it'\''s.ts`)+"'\n", string(data))
}

func TestBuildArgs(t *testing.T) {
	r := New(nil, "", "/w")
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat", "-safe", "0",
		"-i", "/w/concat_x.txt",
		"-c", "copy", "/w/out.mov",
	}, r.BuildArgs(ManifestPath("/w", "x"), "/w/out.mov"))
}
