// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

var (
	validBackends  = []string{"memory", "redis", "badger", "sqlite"}
	validExporters = []string{"grpc", "http"}
	validPrimary   = []string{"left", "right"}
)

// Validate checks cfg and returns every violation joined with errors.Join.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel: %w", err)
	}
	if strings.TrimSpace(cfg.WorkDir) == "" {
		add("workDir: must not be empty")
	}

	if _, _, err := net.SplitHostPort(cfg.API.ListenAddr); err != nil {
		add("api.listenAddr: %w", err)
	}
	if cfg.API.ReadTimeout < 0 || cfg.API.WriteTimeout < 0 {
		add("api: timeouts must not be negative")
	}
	if cfg.API.ShutdownTimeout <= 0 {
		add("api.shutdownTimeout: must be positive, got %s", cfg.API.ShutdownTimeout)
	}
	if cfg.API.RateLimitEnabled && cfg.API.RateLimitRPM <= 0 {
		add("api.rateLimitRpm: must be positive when rate limiting is enabled, got %d", cfg.API.RateLimitRPM)
	}

	for name, bin := range map[string]string{
		"ffmpegBin":     cfg.Tools.FFmpegBin,
		"ffprobeBin":    cfg.Tools.FFprobeBin,
		"spatialBin":    cfg.Tools.SpatialBin,
		"spatialMktBin": cfg.Tools.SpatialMKTBin,
	} {
		if strings.TrimSpace(bin) == "" {
			add("tools.%s: must not be empty", name)
		}
	}
	if cfg.Tools.Timeout < 0 {
		add("tools.timeout: must not be negative, got %s", cfg.Tools.Timeout)
	}
	if cfg.Tools.KillGrace <= 0 {
		add("tools.killGrace: must be positive, got %s", cfg.Tools.KillGrace)
	}

	if cfg.Pipeline.SegmentDuration <= 0 {
		add("pipeline.segmentDuration: must be positive, got %s", cfg.Pipeline.SegmentDuration)
	}
	if cfg.Pipeline.Workers < 0 {
		add("pipeline.workers: must not be negative, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.Transcode.VideoCodec == "" {
		add("pipeline.transcode.videoCodec: must not be empty")
	}
	if crf := cfg.Pipeline.Transcode.CRF; crf < 0 || crf > 63 {
		add("pipeline.transcode.crf: must be within 0..63, got %d", crf)
	}

	if !contains(validPrimary, cfg.Spatial.Primary) {
		add("spatial.primary: must be one of %v, got %q", validPrimary, cfg.Spatial.Primary)
	}
	if cfg.Spatial.HFOV <= 0 || cfg.Spatial.HFOV >= 180 {
		add("spatial.hfov: must be within (0, 180), got %v", cfg.Spatial.HFOV)
	}
	if cfg.Spatial.CDist <= 0 {
		add("spatial.cdist: must be positive, got %v", cfg.Spatial.CDist)
	}
	if cfg.Spatial.Format == "" || cfg.Spatial.Projection == "" {
		add("spatial: format and projection must not be empty")
	}

	if cfg.Merge.Width <= 0 || cfg.Merge.Height <= 0 {
		add("merge: width and height must be positive, got %dx%d", cfg.Merge.Width, cfg.Merge.Height)
	}

	if cfg.Download.Timeout <= 0 {
		add("download.timeout: must be positive, got %s", cfg.Download.Timeout)
	}
	if cfg.Download.MaxBytes < 0 || cfg.Download.RateLimitBytesPerSec < 0 {
		add("download: maxBytes and rateLimitBytesPerSec must not be negative")
	}

	if cfg.Storage.OutputBucket == "" || cfg.Storage.SplitBucket == "" {
		add("storage: outputBucket and splitBucket must not be empty")
	}
	if cfg.Storage.OutputURLTTL <= 0 || cfg.Storage.SplitURLTTL <= 0 {
		add("storage: presign TTLs must be positive")
	}
	if cfg.Storage.Endpoint != "" {
		if u, err := url.Parse(cfg.Storage.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			add("storage.endpoint: must be an absolute URL, got %q", cfg.Storage.Endpoint)
		}
	}
	if cfg.Storage.BreakerThreshold < 0 || cfg.Storage.BreakerReset < 0 {
		add("storage: breakerThreshold and breakerReset must not be negative")
	}
	if (cfg.Storage.AccessKeyID == "") != (cfg.Storage.SecretAccessKey == "") {
		add("storage: accessKeyId and secretAccessKey must be set together")
	}

	if !contains(validBackends, cfg.Jobs.Backend) {
		add("jobs.backend: must be one of %v, got %q", validBackends, cfg.Jobs.Backend)
	}
	if (cfg.Jobs.Backend == "badger" || cfg.Jobs.Backend == "sqlite") && cfg.Jobs.Path == "" {
		add("jobs.path: required for the %s backend", cfg.Jobs.Backend)
	}
	if cfg.Jobs.Backend == "redis" && cfg.Jobs.RedisAddr == "" {
		add("jobs.redisAddr: required for the redis backend")
	}
	if cfg.Jobs.MaxConcurrent <= 0 {
		add("jobs.maxConcurrent: must be positive, got %d", cfg.Jobs.MaxConcurrent)
	}
	if cfg.Jobs.TTL < 0 {
		add("jobs.ttl: must not be negative, got %s", cfg.Jobs.TTL)
	}

	if cfg.Telemetry.Enabled {
		if !contains(validExporters, cfg.Telemetry.ExporterType) {
			add("telemetry.exporterType: must be one of %v, got %q", validExporters, cfg.Telemetry.ExporterType)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint: required when telemetry is enabled")
		}
	}
	if r := cfg.Telemetry.SamplingRate; r < 0 || r > 1 {
		add("telemetry.samplingRate: must be within 0..1, got %v", r)
	}

	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
