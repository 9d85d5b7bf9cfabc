// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/spcut/internal/config"
	"github.com/ManuGH/spcut/internal/jobs"
	"github.com/ManuGH/spcut/internal/pipeline"
	"github.com/ManuGH/spcut/internal/pipeline/concat"
	"github.com/ManuGH/spcut/internal/pipeline/model"
	"github.com/ManuGH/spcut/internal/pipeline/segment"
	"github.com/ManuGH/spcut/internal/pipeline/transcode"
	"github.com/ManuGH/spcut/internal/spatial"
)

// MergeRequest names the two inputs of a merge.
type MergeRequest struct {
	UID      string
	LeftURL  string
	RightURL string
}

// Process converts a stereo video with `spatial make` and returns a presigned
// URL for the result in the output bucket.
func (s *Service) Process(ctx context.Context, rawURL string) (Result, error) {
	if err := validateURL(rawURL); err != nil {
		return Result{}, err
	}
	return s.execute(ctx, OpProcess, func(ctx context.Context, j *job) (map[string]string, error) {
		j.phase(ctx, "downloading")
		in, name, err := s.fetch(ctx, j, rawURL, "")
		if err != nil {
			return nil, err
		}
		out, err := s.processFile(ctx, j, in, name)
		if err != nil {
			return nil, err
		}
		return map[string]string{"output": out}, nil
	})
}

// processFile runs `spatial make` on in and publishes the result.
func (s *Service) processFile(ctx context.Context, j *job, in, name string) (string, error) {
	outName := stem(name) + "_done.mov"
	out := j.path(outName)

	j.phase(ctx, "spatial_make")
	if err := s.tools(j.cfg).Make(ctx, makeSettings(j.cfg.Spatial), in, out); err != nil {
		return "", fmt.Errorf("process video: %w", err)
	}

	j.phase(ctx, "publishing")
	url, err := s.publisher.Publish(ctx, j.cfg.Storage.OutputBucket, j.key(outName), out, j.cfg.Storage.OutputURLTTL)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return url, nil
}

// Split extracts both eyes of a spatial video, sends each through the segment
// pipeline and publishes them to the split bucket.
func (s *Service) Split(ctx context.Context, rawURL string) (Result, error) {
	if err := validateURL(rawURL); err != nil {
		return Result{}, err
	}
	return s.execute(ctx, OpSplit, func(ctx context.Context, j *job) (map[string]string, error) {
		j.phase(ctx, "downloading")
		in, name, err := s.fetch(ctx, j, rawURL, "")
		if err != nil {
			return nil, err
		}

		// spatialmkt picks the output names; register them before it runs.
		left, right := spatial.SplitOutputs(in)
		j.arts.Track(left)
		j.arts.Track(right)

		j.phase(ctx, "splitting")
		if _, _, err := s.tools(j.cfg).Split(ctx, in); err != nil {
			return nil, fmt.Errorf("split video: %w", err)
		}

		coord, err := s.coordinator(j.cfg)
		if err != nil {
			return nil, err
		}

		var mu sync.Mutex
		outputs := make(map[string]string, 2)
		g, gctx := errgroup.WithContext(ctx)
		for _, eye := range []struct{ label, path string }{{"left", left}, {"right", right}} {
			g.Go(func() error {
				objName := stem(name) + "_" + strings.ToUpper(eye.label) + ".mov"
				handoff := func(ctx context.Context, output string) error {
					url, err := s.publisher.Publish(ctx, j.cfg.Storage.SplitBucket, j.key(objName), output, j.cfg.Storage.SplitURLTTL)
					if err != nil {
						return err
					}
					mu.Lock()
					outputs[eye.label] = url
					mu.Unlock()
					return nil
				}
				res := coord.Run(gctx, eye.path, j.path(stem(objName)+"_transcoded.mov"), handoff,
					pipeline.WithRequestID(model.RequestID(j.id+"-"+eye.label)),
					pipeline.WithObserver(jobs.PhaseObserver{Store: s.jobs, JobID: j.id, Label: eye.label}),
				)
				if !res.Success() {
					return fmt.Errorf("%s eye: %w", eye.label, res.Err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return outputs, nil
	})
}

// Merge stacks two videos vertically, names the result <uid>_<unixtime>.mov
// and processes it like Process.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (Result, error) {
	if !uidPattern.MatchString(req.UID) {
		return Result{}, fmt.Errorf("%w: uid must be 1-128 letters, digits, '-' or '_'", ErrInvalidInput)
	}
	if err := validateURL(req.LeftURL); err != nil {
		return Result{}, fmt.Errorf("left_url: %w", err)
	}
	if err := validateURL(req.RightURL); err != nil {
		return Result{}, fmt.Errorf("right_url: %w", err)
	}
	return s.execute(ctx, OpMerge, func(ctx context.Context, j *job) (map[string]string, error) {
		j.phase(ctx, "downloading")
		var left, right string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			left, _, err = s.fetch(gctx, j, req.LeftURL, "left_")
			return err
		})
		g.Go(func() (err error) {
			right, _, err = s.fetch(gctx, j, req.RightURL, "right_")
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		mergedName := fmt.Sprintf("%s_%d.mov", req.UID, s.now().Unix())
		merged := j.path(mergedName)

		j.phase(ctx, "merging")
		if err := s.tools(j.cfg).Merge(ctx, mergeSettings(j.cfg.Merge), left, right, merged); err != nil {
			return nil, fmt.Errorf("merge videos: %w", err)
		}

		out, err := s.processFile(ctx, j, merged, mergedName)
		if err != nil {
			return nil, err
		}
		return map[string]string{"output": out}, nil
	})
}

// Transcode runs the segment pipeline on one video and publishes the result
// to the output bucket.
func (s *Service) Transcode(ctx context.Context, rawURL string) (Result, error) {
	if err := validateURL(rawURL); err != nil {
		return Result{}, err
	}
	return s.execute(ctx, OpTranscode, func(ctx context.Context, j *job) (map[string]string, error) {
		j.phase(ctx, "downloading")
		in, name, err := s.fetch(ctx, j, rawURL, "")
		if err != nil {
			return nil, err
		}
		coord, err := s.coordinator(j.cfg)
		if err != nil {
			return nil, err
		}

		objName := stem(name) + "_transcoded.mov"
		var url string
		handoff := func(ctx context.Context, output string) (err error) {
			url, err = s.publisher.Publish(ctx, j.cfg.Storage.OutputBucket, j.key(objName), output, j.cfg.Storage.OutputURLTTL)
			return err
		}
		res := coord.Run(ctx, in, j.path(objName), handoff,
			pipeline.WithRequestID(model.RequestID(j.id)),
			pipeline.WithObserver(jobs.PhaseObserver{Store: s.jobs, JobID: j.id}),
		)
		if !res.Success() {
			return nil, res.Err
		}
		return map[string]string{"output": url}, nil
	})
}

func (s *Service) tools(cfg config.AppConfig) *spatial.Tools {
	return &spatial.Tools{
		Runner:     s.runner,
		SpatialBin: cfg.Tools.SpatialBin,
		SplitBin:   cfg.Tools.SpatialMKTBin,
		FFmpegBin:  cfg.Tools.FFmpegBin,
	}
}

// coordinator wires the segment pipeline from a config snapshot.
func (s *Service) coordinator(cfg config.AppConfig) (*pipeline.Coordinator, error) {
	ffmpeg := cfg.Tools.FFmpegBin
	tc := transcode.NewFFmpeg(s.runner, ffmpeg, cfg.WorkDir, transcodeSettings(cfg.Pipeline.Transcode))
	return pipeline.NewCoordinator(pipeline.Config{
		Segmenter:       segment.New(s.runner, ffmpeg, cfg.WorkDir),
		Transcoder:      transcode.NewPool(tc, cfg.Pipeline.Workers),
		Reassembler:     concat.New(s.runner, ffmpeg, cfg.WorkDir),
		WorkDir:         cfg.WorkDir,
		SegmentDuration: cfg.Pipeline.SegmentDuration,
		Tracer:          s.tracer,
	})
}

func transcodeSettings(c config.TranscodeConfig) transcode.Settings {
	return transcode.Settings{
		VideoCodec:  c.VideoCodec,
		Preset:      c.Preset,
		CRF:         c.CRF,
		PixelFormat: c.PixelFormat,
		AudioCodec:  c.AudioCodec,
		MovFlags:    c.MovFlags,
	}
}

func makeSettings(c config.SpatialConfig) spatial.MakeSettings {
	return spatial.MakeSettings{
		Format:     c.Format,
		CDist:      c.CDist,
		HFOV:       c.HFOV,
		HAdjust:    c.HAdjust,
		Primary:    c.Primary,
		Projection: c.Projection,
	}
}

func mergeSettings(c config.MergeConfig) spatial.MergeSettings {
	return spatial.MergeSettings{
		Width:       c.Width,
		Height:      c.Height,
		VideoCodec:  c.VideoCodec,
		PixelFormat: c.PixelFormat,
	}
}
