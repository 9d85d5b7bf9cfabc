// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func TestMachine_FireAndHooks(t *testing.T) {
	m, err := New[state, event]("idle", []Transition[state, event]{
		{From: "idle", Event: "start", To: "running"},
		{From: "running", Event: "stop", To: "done"},
	})
	require.NoError(t, err)

	var seen []string
	m.OnTransition(func(from, to state, ev event) {
		seen = append(seen, string(from)+">"+string(to))
	})

	assert.True(t, m.Can("start"))
	assert.False(t, m.Can("stop"))

	to, err := m.Fire("start")
	require.NoError(t, err)
	assert.Equal(t, state("running"), to)

	_, err = m.Fire("start")
	assert.Error(t, err)
	assert.Equal(t, state("running"), m.State())

	_, err = m.Fire("stop")
	require.NoError(t, err)
	assert.Equal(t, []string{"idle>running", "running>done"}, seen)
}

func TestMachine_GuardRejects(t *testing.T) {
	m, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b", Guard: func(state, event) error { return errors.New("blocked") }},
	})
	require.NoError(t, err)

	_, err = m.Fire("go")
	assert.EqualError(t, err, "blocked")
	assert.Equal(t, state("a"), m.State())
}

func TestNew_DuplicateTransition(t *testing.T) {
	_, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b"},
		{From: "a", Event: "go", To: "c"},
	})
	assert.Error(t, err)
}
