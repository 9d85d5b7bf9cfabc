// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/pipeline"
	"github.com/ManuGH/spcut/internal/pipeline/model"
)

// PhaseObserver mirrors Coordinator transitions into a job record's Phase.
// A job may run several pipelines (split runs one per eye); the phase is
// prefixed with Label when set.
type PhaseObserver struct {
	Store Store
	JobID string
	Label string
}

var _ pipeline.Observer = PhaseObserver{}

// OnTransition implements pipeline.Observer. Store errors are logged, never
// propagated into the pipeline.
func (o PhaseObserver) OnTransition(ctx context.Context, _ model.RequestID, _, to pipeline.State) {
	phase := string(to)
	if o.Label != "" {
		phase = o.Label + ":" + phase
	}
	_, err := o.Store.Update(context.WithoutCancel(ctx), o.JobID, func(r *Record) error {
		r.Phase = phase
		return nil
	})
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "jobs")
		logger.Warn().
			Str(log.FieldEvent, "jobs.phase_update_failed").
			Str(log.FieldJobID, o.JobID).
			Str("phase", phase).
			Err(err).
			Msg("failed to record pipeline phase")
	}
}
