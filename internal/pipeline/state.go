// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"errors"

	"github.com/ManuGH/spcut/internal/pipeline/fsm"
)

// State is a Coordinator lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateSegmenting   State = "segmenting"
	StateTranscoding  State = "transcoding"
	StateReassembling State = "reassembling"
	StateHandingOff   State = "handing_off"
	StateCleaningUp   State = "cleaning_up"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Event drives a Coordinator state transition.
type Event string

const (
	EventStart       Event = "start"
	EventSegmented   Event = "segmented"
	EventTranscoded  Event = "transcoded"
	EventHandoff     Event = "handoff"
	EventFinish      Event = "finish"
	EventFail        Event = "fail"
	EventCleaned     Event = "cleaned"
	EventCleanFailed Event = "clean_failed"
)

var errRunFailed = errors.New("run has failed")

// newMachine builds the lifecycle FSM of one run. failed reports whether the
// run has recorded an error; it guards the CleaningUp exits.
func newMachine(failed func() bool) *fsm.Machine[State, Event] {
	okGuard := func(State, Event) error {
		if failed() {
			return errRunFailed
		}
		return nil
	}
	failGuard := func(State, Event) error {
		if !failed() {
			return errors.New("run has not failed")
		}
		return nil
	}

	transitions := []fsm.Transition[State, Event]{
		{From: StateIdle, Event: EventStart, To: StateSegmenting},
		{From: StateSegmenting, Event: EventSegmented, To: StateTranscoding},
		{From: StateTranscoding, Event: EventTranscoded, To: StateReassembling},
		{From: StateReassembling, Event: EventHandoff, To: StateHandingOff},
		{From: StateReassembling, Event: EventFinish, To: StateCleaningUp},
		{From: StateHandingOff, Event: EventFinish, To: StateCleaningUp},
		{From: StateCleaningUp, Event: EventCleaned, To: StateSucceeded, Guard: okGuard},
		{From: StateCleaningUp, Event: EventCleanFailed, To: StateFailed, Guard: failGuard},
	}
	for _, s := range []State{StateSegmenting, StateTranscoding, StateReassembling, StateHandingOff} {
		transitions = append(transitions, fsm.Transition[State, Event]{From: s, Event: EventFail, To: StateCleaningUp, Guard: failGuard})
	}

	m, err := fsm.New(StateIdle, transitions)
	if err != nil {
		panic(err)
	}
	return m
}
