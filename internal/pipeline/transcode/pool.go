// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode re-encodes segments in parallel through a bounded worker pool.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
	"github.com/ManuGH/spcut/internal/pipeline/model"
)

// Transcoder re-encodes exactly one segment.
type Transcoder interface {
	TranscodeOne(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error)
}

// Pool fans segments out to at most Workers concurrent transcodes.
type Pool struct {
	transcoder Transcoder
	workers    int
}

// NewPool returns a pool of the given size. Non-positive sizes use runtime.NumCPU.
func NewPool(t Transcoder, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{transcoder: t, workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// TranscodeAll transcodes every segment and returns the results in input
// order, independent of completion order. The first failure cancels all
// outstanding work; the reported failure is the lowest-index segment that
// failed on its own account, never one that was only canceled as a result.
func (p *Pool) TranscodeAll(ctx context.Context, segs []model.Segment) ([]model.TranscodedSegment, error) {
	logger := log.WithContext(ctx, log.WithComponent("transcode"))
	start := time.Now()

	results := make([]model.TranscodedSegment, len(segs))
	errs := make([]error, len(segs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, seg := range segs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str(log.FieldEvent, "transcode.panic").
						Int(log.FieldSegment, seg.Index).
						Str("stack", string(debug.Stack())).
						Msgf("panic in segment worker: %v", r)
					errs[i] = &model.TranscodeError{Index: seg.Index, Err: fmt.Errorf("panic: %v", r)}
					metrics.IncSegment("failed")
					err = errs[i]
				}
			}()
			if err := gctx.Err(); err != nil {
				errs[i] = &model.TranscodeError{Index: seg.Index, Err: err, Canceled: true}
				metrics.IncSegment("skipped")
				return err
			}
			out, err := p.transcoder.TranscodeOne(gctx, seg)
			if err != nil {
				errs[i] = asTranscodeError(seg.Index, err)
				if isCanceled(errs[i]) {
					metrics.IncSegment("canceled")
				} else {
					metrics.IncSegment("failed")
				}
				return err
			}
			results[i] = out
			metrics.IncSegment("ok")
			return nil
		})
	}
	_ = g.Wait()

	if err := firstFailure(errs); err != nil {
		var te *model.TranscodeError
		if errors.As(err, &te) {
			logger.Warn().
				Str(log.FieldEvent, "transcode.failed").
				Int(log.FieldSegment, te.Index).
				Int(log.FieldSegments, len(segs)).
				Bool("canceled", te.Canceled).
				Err(err).
				Msg("segment batch aborted")
		}
		return nil, err
	}

	logger.Info().
		Str(log.FieldEvent, "transcode.done").
		Int(log.FieldSegments, len(segs)).
		Int(log.FieldWorkers, p.workers).
		Dur("duration", time.Since(start)).
		Msg("all segments transcoded")
	return results, nil
}

// firstFailure picks the deterministic batch error: the first genuine
// failure in input order, else the first cancellation.
func firstFailure(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if isCanceled(err) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}
	return canceled
}

func asTranscodeError(index int, err error) error {
	var te *model.TranscodeError
	if errors.As(err, &te) {
		return err
	}
	return &model.TranscodeError{
		Index:    index,
		Err:      err,
		Canceled: errors.Is(err, context.Canceled),
	}
}

func isCanceled(err error) bool {
	var te *model.TranscodeError
	if errors.As(err, &te) {
		return te.Canceled
	}
	return errors.Is(err, context.Canceled)
}
