// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline coordinates the segment transcode pipeline: segment once,
// transcode every segment on a bounded pool, reassemble in order and clean up
// every intermediate regardless of outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
	"github.com/ManuGH/spcut/internal/pipeline/concat"
	"github.com/ManuGH/spcut/internal/pipeline/model"
	"github.com/ManuGH/spcut/internal/pipeline/segment"
	"github.com/ManuGH/spcut/internal/pipeline/transcode"
	"github.com/ManuGH/spcut/internal/telemetry"
)

// Segmenter splits a source into ordered segments.
type Segmenter interface {
	Segment(ctx context.Context, source string, duration time.Duration, rid model.RequestID) ([]model.Segment, error)
}

// Transcoder re-encodes a batch of segments, preserving input order.
type Transcoder interface {
	TranscodeAll(ctx context.Context, segs []model.Segment) ([]model.TranscodedSegment, error)
}

// Reassembler concatenates transcoded segments into output.
type Reassembler interface {
	Reassemble(ctx context.Context, rid model.RequestID, segs []model.TranscodedSegment, output string) (string, error)
}

// Handoff takes custody of the reassembled output, e.g. by uploading it. The
// Coordinator deletes the output once Handoff returns.
type Handoff func(ctx context.Context, outputPath string) error

// Observer receives every state transition of a run.
type Observer interface {
	OnTransition(ctx context.Context, rid model.RequestID, from, to State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rid model.RequestID, from, to State)

func (f ObserverFunc) OnTransition(ctx context.Context, rid model.RequestID, from, to State) {
	f(ctx, rid, from, to)
}

// Config wires the Coordinator's stages.
type Config struct {
	Segmenter       Segmenter
	Transcoder      Transcoder
	Reassembler     Reassembler
	WorkDir         string
	SegmentDuration time.Duration
	// Observer is notified of every run's transitions. Optional.
	Observer Observer
	// Tracer defaults to a noop tracer.
	Tracer trace.Tracer
}

// Coordinator runs the pipeline. A single Coordinator serves concurrent runs;
// runs share WorkDir and are isolated only by their RequestID.
type Coordinator struct {
	cfg    Config
	tracer trace.Tracer
}

// NewCoordinator validates cfg and returns a Coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	var errs []error
	if cfg.Segmenter == nil {
		errs = append(errs, errors.New("segmenter is required"))
	}
	if cfg.Transcoder == nil {
		errs = append(errs, errors.New("transcoder is required"))
	}
	if cfg.Reassembler == nil {
		errs = append(errs, errors.New("reassembler is required"))
	}
	if cfg.WorkDir == "" {
		errs = append(errs, errors.New("work dir is required"))
	}
	if cfg.SegmentDuration <= 0 {
		errs = append(errs, fmt.Errorf("segment duration must be positive, got %s", cfg.SegmentDuration))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Coordinator{cfg: cfg, tracer: tracer}, nil
}

// Result is the single outcome of a run.
type Result struct {
	RequestID model.RequestID
	State     State
	// OutputPath is the reassembled file. After a Handoff it names the file
	// that was handed off and has already been deleted locally.
	OutputPath string
	Segments   int
	Err        error
	Warnings   []model.CleanupWarning
}

// Success reports whether the run ended in Succeeded.
func (r Result) Success() bool { return r.State == StateSucceeded }

// Detail returns the failure text, or "" on success.
func (r Result) Detail() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RunOption customises a single run.
type RunOption func(*runOptions)

type runOptions struct {
	rid       model.RequestID
	observers []Observer
}

// WithRequestID overrides the generated request ID.
func WithRequestID(rid model.RequestID) RunOption {
	return func(o *runOptions) { o.rid = rid }
}

// WithObserver adds an observer for this run only.
func WithObserver(obs Observer) RunOption {
	return func(o *runOptions) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

type run struct {
	mu     sync.Mutex
	err    error
	phased time.Time
	span   trace.Span
}

func (r *run) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil
}

func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Run transcodes source into output. Every intermediate is removed before Run
// returns, on success, failure and panic alike. The output itself is kept for
// the caller unless a Handoff is given or the run fails.
func (c *Coordinator) Run(ctx context.Context, source, output string, handoff Handoff, opts ...RunOption) (res Result) {
	o := runOptions{rid: model.NewRequestID()}
	if c.cfg.Observer != nil {
		o.observers = append(o.observers, c.cfg.Observer)
	}
	for _, opt := range opts {
		opt(&o)
	}
	rid := o.rid

	ctx, span := c.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(telemetry.PipelineAttributes(string(rid), 0, 0)...))
	defer span.End()

	ctx = log.ContextWithPipelineRun(ctx, string(rid))
	logger := log.WithComponentFromContext(ctx, "pipeline")

	r := &run{phased: time.Now()}
	m := newMachine(r.failed)
	m.OnTransition(func(from, to State, ev Event) {
		metrics.ObservePhase(string(from), time.Since(r.phased))
		r.phased = time.Now()
		logger.Debug().
			Str(log.FieldEvent, "pipeline.transition").
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Msg("pipeline state changed")
		for _, obs := range o.observers {
			notify(ctx, logger, obs, rid, from, to)
		}
	})
	fire := func(ev Event) {
		if _, err := m.Fire(ev); err != nil {
			panic(fmt.Sprintf("pipeline: illegal transition: %v", err))
		}
	}

	arts := NewArtifacts(logger)
	arts.TrackGlob(segment.Pattern(c.cfg.WorkDir, rid))
	arts.TrackGlob(transcode.Pattern(c.cfg.WorkDir, rid))
	arts.Track(concat.ManifestPath(c.cfg.WorkDir, rid))

	start := time.Now()
	res = Result{RequestID: rid, OutputPath: output}

	defer func() {
		if p := recover(); p != nil {
			r.fail(fmt.Errorf("panic: %v", p))
			logger.Error().
				Str(log.FieldEvent, "pipeline.panic").
				Str("stack", string(debug.Stack())).
				Msgf("recovered panic in %s", m.State())
		}
		c.endPhase(r, r.err)

		if r.failed() {
			if m.State() != StateCleaningUp {
				fire(EventFail)
			}
		} else {
			fire(EventFinish)
		}

		if r.failed() || handoff != nil {
			arts.Track(output)
		}
		res.Warnings = arts.Release()

		if r.failed() {
			fire(EventCleanFailed)
		} else {
			fire(EventCleaned)
		}
		res.State = m.State()
		res.Err = r.err
		if !res.State.Terminal() {
			panic(fmt.Sprintf("pipeline: run ended in non-terminal state %s", res.State))
		}

		result := "succeeded"
		if !res.Success() {
			result = "failed"
			span.RecordError(res.Err)
		}
		metrics.IncPipelineRun(result)
		span.SetAttributes(
			attribute.String(telemetry.PipelineStateKey, string(res.State)),
			attribute.Int(telemetry.PipelineSegmentsKey, res.Segments),
		)

		ev := logger.Info()
		if !res.Success() {
			ev = logger.Warn().Str("error", res.Detail())
		}
		ev.Str(log.FieldEvent, "pipeline.finished").
			Str(log.FieldSource, source).
			Str(log.FieldOutput, output).
			Int(log.FieldSegments, res.Segments).
			Dur("duration", time.Since(start)).
			Msgf("pipeline %s", res.State)
	}()

	fire(EventStart)

	pctx := c.startPhase(ctx, r, StateSegmenting)
	if err := rid.Validate(); err != nil {
		r.fail(&model.SegmentationError{Err: err})
		return res
	}
	segs, err := c.cfg.Segmenter.Segment(pctx, source, c.cfg.SegmentDuration, rid)
	if err != nil {
		r.fail(err)
		return res
	}
	res.Segments = len(segs)
	c.endPhase(r, nil)
	fire(EventSegmented)

	pctx = c.startPhase(ctx, r, StateTranscoding)
	transcoded, err := c.cfg.Transcoder.TranscodeAll(pctx, segs)
	if err != nil {
		r.fail(err)
		return res
	}
	c.endPhase(r, nil)
	fire(EventTranscoded)

	pctx = c.startPhase(ctx, r, StateReassembling)
	if _, err := c.cfg.Reassembler.Reassemble(pctx, rid, transcoded, output); err != nil {
		r.fail(err)
		return res
	}
	c.endPhase(r, nil)

	if handoff != nil {
		fire(EventHandoff)
		pctx = c.startPhase(ctx, r, StateHandingOff)
		if err := handoff(pctx, output); err != nil {
			r.fail(fmt.Errorf("handoff: %w", err))
			return res
		}
		c.endPhase(r, nil)
	}
	return res
}

func (c *Coordinator) startPhase(ctx context.Context, r *run, phase State) context.Context {
	ctx, span := c.tracer.Start(ctx, "pipeline."+string(phase))
	r.span = span
	return ctx
}

func (c *Coordinator) endPhase(r *run, err error) {
	if r.span == nil {
		return
	}
	telemetry.EndSpan(r.span, err)
	r.span = nil
}

// notify delivers one transition to obs. Observer panics are logged and
// dropped; they must not abort the run or its cleanup.
func notify(ctx context.Context, logger zerolog.Logger, obs Observer, rid model.RequestID, from, to State) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().
				Str(log.FieldEvent, "pipeline.observer_panic").
				Str(log.FieldNewState, string(to)).
				Str("stack", string(debug.Stack())).
				Msgf("observer panicked: %v", p)
		}
	}()
	obs.OnTransition(ctx, rid, from, to)
}
