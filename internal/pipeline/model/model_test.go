// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestID_UniqueAndValid(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.NotEqual(t, a, b)
	require.NoError(t, a.Validate())
}

func TestRequestID_Validate(t *testing.T) {
	assert.Error(t, RequestID("").Validate())
	assert.Error(t, RequestID("../etc").Validate())
	assert.Error(t, RequestID("a b").Validate())
	assert.Error(t, RequestID("job_42").Validate())
	assert.NoError(t, RequestID("job-42-x").Validate())
}

func TestValidateSequence(t *testing.T) {
	assert.NoError(t, ValidateSequence(nil))
	assert.NoError(t, ValidateSequence([]int{0, 1, 2}))
	assert.Error(t, ValidateSequence([]int{0, 2}))
	assert.Error(t, ValidateSequence([]int{1, 0}))
	assert.Error(t, ValidateSequence([]int{1}))
}

func TestErrorText(t *testing.T) {
	te := &TranscodeError{Index: 2, Diagnostic: "Conversion failed!"}
	assert.Equal(t, "TranscodeError: segment 2: Conversion failed!", te.Error())

	se := &SegmentationError{Err: errors.New("no segments produced")}
	assert.Equal(t, "SegmentationError: no segments produced", se.Error())

	re := &ReassemblyError{Path: "/tmp/processed_x_001.ts"}
	assert.Equal(t, "ReassemblyError: missing input /tmp/processed_x_001.ts", re.Error())

	assert.Equal(t, "ReassemblyError: unknown error", (&ReassemblyError{}).Error())
}

func TestErrorsUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", &TranscodeError{Index: 1, Err: os.ErrNotExist})

	var te *TranscodeError
	require.True(t, errors.As(wrapped, &te))
	assert.Equal(t, 1, te.Index)
	assert.ErrorIs(t, wrapped, os.ErrNotExist)

	w := CleanupWarning{Path: "/x", Err: os.ErrPermission}
	assert.ErrorIs(t, w, os.ErrPermission)
}
