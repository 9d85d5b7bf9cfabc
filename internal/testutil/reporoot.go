// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// RepoFile returns the absolute path of rel, resolved against the module
// root. The test fails when the file does not exist.
func RepoFile(t testing.TB, rel string) string {
	t.Helper()

	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("repo file: cannot determine caller")
	}
	// This file lives in <root>/internal/testutil.
	root := filepath.Join(filepath.Dir(self), "..", "..")
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("repo file: module root not found from %s: %v", self, err)
	}

	path := filepath.Join(root, filepath.FromSlash(rel))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("repo file %s: %v", rel, err)
	}
	return path
}
