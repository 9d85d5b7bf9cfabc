// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sh(script string) Command {
	return Command{Tool: "sh", Bin: "sh", Args: []string{"-c", script}}
}

func TestRun_Success(t *testing.T) {
	r := NewRunner(5*time.Second, 100*time.Millisecond)

	res, err := r.Run(context.Background(), sh("echo progress >&2; exit 0"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "progress", res.Stderr)
}

func TestRun_NonZeroExitCarriesStderrTail(t *testing.T) {
	r := NewRunner(5*time.Second, 100*time.Millisecond)

	res, err := r.Run(context.Background(), sh("echo first >&2; echo 'Invalid data found' >&2; exit 3"))
	require.Error(t, err)

	var ee *ExitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.Code)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "sh exited with code 3: Invalid data found", ee.Error())
	assert.Equal(t, "first\nInvalid data found", Diagnostic(err))
}

func TestRun_Timeout(t *testing.T) {
	r := NewRunner(200*time.Millisecond, 100*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), sh("sleep 30"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, IsCanceled(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_ParentCancellation(t *testing.T) {
	r := NewRunner(0, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Run(ctx, sh("sleep 30"))
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRun_AlreadyCanceled(t *testing.T) {
	r := NewRunner(time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, sh("exit 0"))
	assert.True(t, IsCanceled(err))
}

func TestRun_StdinAndArgvWithoutShell(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "answer.txt")
	r := NewRunner(5*time.Second, 0)

	// The odd file name must reach the tool verbatim, not be interpreted.
	weird := filepath.Join(dir, "it's $(rm -rf x); name.txt")
	_, err := r.Run(context.Background(), Command{
		Bin:   "sh",
		Args:  []string{"-c", `read answer; printf '%s' "$answer" > "$1"; : > "$2"`, "sh", out, weird},
		Stdin: "y\n",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
	assert.FileExists(t, weird)
}

func TestRun_StartError(t *testing.T) {
	r := NewRunner(time.Second, 0)
	_, err := r.Run(context.Background(), Command{Bin: "/nonexistent/spcut-tool"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start spcut-tool")
}

func TestDiagnostic(t *testing.T) {
	assert.Equal(t, "", Diagnostic(nil))
	assert.Equal(t, "boom", Diagnostic(errors.New("boom")))
	assert.Equal(t, "ffmpeg exited with code 1", Diagnostic(&ExitError{Tool: "ffmpeg", Code: 1}))
}

func TestCommandString(t *testing.T) {
	c := Command{Bin: "ffmpeg", Args: []string{"-i", "in.mov"}}
	assert.Equal(t, "ffmpeg -i in.mov", c.String())
	assert.Equal(t, "ffmpeg", c.toolName())
}
