// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package service implements the four spcut operations: process, split,
// merge and transcode. Each operation downloads its inputs into the work
// directory, runs the external tools, publishes the result to object
// storage and removes every local file before returning.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ManuGH/spcut/internal/admission"
	"github.com/ManuGH/spcut/internal/config"
	"github.com/ManuGH/spcut/internal/download"
	"github.com/ManuGH/spcut/internal/fsutil"
	"github.com/ManuGH/spcut/internal/jobs"
	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
	"github.com/ManuGH/spcut/internal/pipeline"
	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/storage"
	"github.com/ManuGH/spcut/internal/telemetry"
)

// Operation names, used for job records, metrics and spans.
const (
	OpProcess   = "process"
	OpSplit     = "split"
	OpMerge     = "merge"
	OpTranscode = "transcode"
)

var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy is returned when no operation slot became free in time.
	ErrBusy = errors.New("service busy")
)

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ConfigSource yields the current configuration. *config.Holder satisfies it.
type ConfigSource interface {
	Get() config.AppConfig
}

// Fetcher downloads a URL to a local path. *download.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, destPath string) (int64, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Config    ConfigSource
	Runner    exec.Runner
	Fetcher   Fetcher
	Publisher storage.Publisher
	Jobs      jobs.Store
	Gate      *admission.Gate
	Tracer    trace.Tracer
}

// Service runs operations. It is safe for concurrent use.
type Service struct {
	cfg       ConfigSource
	runner    exec.Runner
	fetcher   Fetcher
	publisher storage.Publisher
	jobs      jobs.Store
	gate      *admission.Gate
	tracer    trace.Tracer
	now       func() time.Time
}

// New validates deps and returns a Service.
func New(deps Deps) (*Service, error) {
	var errs []error
	if deps.Config == nil {
		errs = append(errs, errors.New("config source is required"))
	}
	if deps.Runner == nil {
		errs = append(errs, errors.New("runner is required"))
	}
	if deps.Fetcher == nil {
		errs = append(errs, errors.New("fetcher is required"))
	}
	if deps.Publisher == nil {
		errs = append(errs, errors.New("publisher is required"))
	}
	if deps.Jobs == nil {
		errs = append(errs, errors.New("jobs store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	gate := deps.Gate
	if gate == nil {
		gate = admission.NewGate(deps.Config.Get().Jobs.MaxConcurrent)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Service{
		cfg:       deps.Config,
		runner:    deps.Runner,
		fetcher:   deps.Fetcher,
		publisher: deps.Publisher,
		jobs:      deps.Jobs,
		gate:      gate,
		tracer:    tracer,
		now:       time.Now,
	}, nil
}

// Result is the outcome of a successful operation.
type Result struct {
	JobID   string
	Outputs map[string]string
}

// Job returns the status record of a job.
func (s *Service) Job(ctx context.Context, id string) (jobs.Record, error) {
	return s.jobs.Get(ctx, id)
}

// job is the per-operation scope: one config snapshot, one artifact registry.
type job struct {
	id    string
	op    string
	cfg   config.AppConfig
	arts  *pipeline.Artifacts
	store jobs.Store
}

// path returns a job-scoped work directory path and registers it for cleanup.
func (j *job) path(name string) string {
	p := filepath.Join(j.cfg.WorkDir, j.id+"_"+name)
	j.arts.Track(p)
	return p
}

func (j *job) key(name string) string {
	return storage.ObjectKey(j.id, name)
}

func (j *job) phase(ctx context.Context, phase string) {
	_, err := j.store.Update(context.WithoutCancel(ctx), j.id, func(r *jobs.Record) error {
		r.Phase = phase
		return nil
	})
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "service")
		logger.Warn().Err(err).Str(log.FieldEvent, "jobs.phase_update_failed").Str("phase", phase).Msg("failed to record phase")
	}
}

type opFunc func(ctx context.Context, j *job) (map[string]string, error)

// execute admits, records and traces one operation around fn.
func (s *Service) execute(ctx context.Context, op string, fn opFunc) (Result, error) {
	start := time.Now()
	release, err := s.gate.Acquire(ctx, op)
	if err != nil {
		metrics.ObserveOperation(op, "rejected", time.Since(start))
		return Result{}, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	defer release()
	defer metrics.OperationStarted()()

	id := uuid.NewString()
	ctx = log.ContextWithJobID(ctx, id)
	ctx, span := s.tracer.Start(ctx, "service."+op, trace.WithAttributes(telemetry.OperationAttributes(op, id)...))
	logger := log.WithComponentFromContext(ctx, "service")

	j := &job{
		id:    id,
		op:    op,
		cfg:   s.cfg.Get(),
		arts:  pipeline.NewArtifacts(logger),
		store: s.jobs,
	}

	created := s.now()
	if err := s.jobs.Put(ctx, jobs.Record{
		ID:        id,
		Operation: op,
		State:     jobs.StateRunning,
		CreatedAt: created,
		UpdatedAt: created,
	}); err != nil {
		telemetry.EndSpan(span, err)
		return Result{}, fmt.Errorf("record job: %w", err)
	}

	logger.Info().Str(log.FieldEvent, "operation.start").Str(log.FieldOperation, op).Msg("operation started")

	outputs, runErr := s.guard(ctx, j, fn)
	warnings := j.arts.Release()

	_, err = s.jobs.Update(context.WithoutCancel(ctx), id, func(r *jobs.Record) error {
		if runErr != nil {
			r.State = jobs.StateFailed
			r.Error = runErr.Error()
			return nil
		}
		r.State = jobs.StateSucceeded
		r.Phase = ""
		r.Outputs = outputs
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "jobs.update_failed").Msg("failed to record job outcome")
	}

	result := "succeeded"
	if runErr != nil {
		result = "failed"
	}
	metrics.ObserveOperation(op, result, time.Since(start))
	telemetry.EndSpan(span, runErr)

	ev := logger.Info()
	if runErr != nil {
		ev = logger.Warn().Err(runErr)
	}
	ev.Str(log.FieldEvent, "operation.finished").
		Str(log.FieldOperation, op).
		Int("cleanup_warnings", len(warnings)).
		Dur("duration", time.Since(start)).
		Msgf("operation %s", result)

	if runErr != nil {
		return Result{JobID: id}, runErr
	}
	return Result{JobID: id, Outputs: outputs}, nil
}

// guard converts a panic in fn into an error so the job record and the
// artifact registry are still settled.
func (s *Service) guard(ctx context.Context, j *job, fn opFunc) (out map[string]string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			logger := log.WithComponentFromContext(ctx, "service")
			logger.Error().Str(log.FieldEvent, "operation.panic").Str(log.FieldOperation, j.op).Msg(err.Error())
		}
	}()
	return fn(ctx, j)
}

// fetch downloads rawURL into the job's scope under the given name prefix.
func (s *Service) fetch(ctx context.Context, j *job, rawURL, prefix string) (path, name string, err error) {
	name = prefix + download.FilenameFromURL(rawURL)
	if _, err := fsutil.ConfineRelPath(j.cfg.WorkDir, j.id+"_"+name); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	path = j.path(name)
	if _, err := s.fetcher.Fetch(ctx, rawURL, path); err != nil {
		if errors.Is(err, download.ErrScheme) {
			return "", "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return "", "", fmt.Errorf("download video: %w", err)
	}
	return path, name, nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: url not provided", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: url: %w", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", ErrInvalidInput)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidInput)
	}
	return nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
