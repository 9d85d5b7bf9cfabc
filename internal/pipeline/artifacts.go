// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
	"github.com/ManuGH/spcut/internal/pipeline/model"
)

// Artifacts is a scoped registry of files to delete when a unit of work ends.
// Files are registered when they are created, either by exact path or by glob
// pattern for files whose names are chosen by an external tool.
//
// Release removes everything registered so far and empties the registry, so a
// second Release is a no-op. It is safe for concurrent use.
type Artifacts struct {
	mu     sync.Mutex
	paths  []string
	globs  []string
	logger zerolog.Logger
}

// NewArtifacts returns an empty registry that logs removal failures to logger.
func NewArtifacts(logger zerolog.Logger) *Artifacts {
	return &Artifacts{logger: logger}
}

// Track registers a single file.
func (a *Artifacts) Track(path string) {
	if path == "" {
		return
	}
	a.mu.Lock()
	a.paths = append(a.paths, path)
	a.mu.Unlock()
}

// TrackGlob registers every file matching pattern at release time.
func (a *Artifacts) TrackGlob(pattern string) {
	if pattern == "" {
		return
	}
	a.mu.Lock()
	a.globs = append(a.globs, pattern)
	a.mu.Unlock()
}

// Release deletes every registered file. A file that is already gone is not a
// warning; any other removal failure is logged, counted and returned.
func (a *Artifacts) Release() []model.CleanupWarning {
	a.mu.Lock()
	paths, globs := a.paths, a.globs
	a.paths, a.globs = nil, nil
	a.mu.Unlock()

	seen := make(map[string]struct{}, len(paths))
	var targets []string
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		targets = append(targets, p)
	}
	for _, p := range paths {
		add(p)
	}

	var warnings []model.CleanupWarning
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			warnings = append(warnings, model.CleanupWarning{Path: g, Err: err})
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	removed := 0
	for _, p := range targets {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			warnings = append(warnings, model.CleanupWarning{Path: p, Err: err})
		}
	}

	for _, w := range warnings {
		metrics.IncCleanupWarning()
		a.logger.Warn().
			Str(log.FieldEvent, "cleanup.warning").
			Str(log.FieldPath, w.Path).
			Err(w.Err).
			Msg("failed to remove artifact")
	}
	if removed > 0 || len(warnings) > 0 {
		a.logger.Debug().
			Str(log.FieldEvent, "cleanup.done").
			Int("removed", removed).
			Int("warnings", len(warnings)).
			Msg("artifacts released")
	}
	return warnings
}
