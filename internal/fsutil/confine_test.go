// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "safe.mov"), []byte("safe"), 0o600))
	// "link_outside" points at the parent of root.
	require.NoError(t, os.Symlink("..", filepath.Join(root, "link_outside")))
	// A planted symlink with a job-style name pointing outside.
	require.NoError(t, os.Symlink(filepath.Dir(root), filepath.Join(root, "job_video.mov")))

	tests := []struct {
		name     string
		target   string
		wantErr  bool
		wantPath string
	}{
		{name: "existing file", target: "safe.mov", wantPath: "safe.mov"},
		{name: "new file", target: "abc_video.mov", wantPath: "abc_video.mov"},
		{name: "new file in subdir", target: "subdir/out.mov", wantPath: "subdir/out.mov"},
		{name: "dotdot inside name", target: "a..b.mov", wantPath: "a..b.mov"},
		{name: "traversal", target: "../outside.mov", wantErr: true},
		{name: "absolute", target: "/etc/passwd", wantErr: true},
		{name: "backslash", target: `..\evil.mov`, wantErr: true},
		{name: "symlinked dir escape", target: "link_outside/foo", wantErr: true},
		{name: "symlinked file escape", target: "job_video.mov", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(root, tt.target)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrEscapesRoot)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(got, tt.wantPath), "got %s", got)
		})
	}
}

func TestConfineRelPath_MissingRoot(t *testing.T) {
	_, err := ConfineRelPath(filepath.Join(t.TempDir(), "missing"), "a.mov")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEscapesRoot)
}
