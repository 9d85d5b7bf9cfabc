// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, or "" for environment-only configuration.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt64(EnvPrefix+key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.WorkDir); err == nil {
		cfg.WorkDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

// mergeEnvConfig overrides cfg with SPCUT_* environment variables.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)
	cfg.WorkDir = l.envString("WORK_DIR", cfg.WorkDir)

	cfg.API.ListenAddr = l.envString("LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.ReadTimeout = l.envDuration("API_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = l.envDuration("API_WRITE_TIMEOUT", cfg.API.WriteTimeout)
	cfg.API.ShutdownTimeout = l.envDuration("API_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)
	cfg.API.RateLimitEnabled = l.envBool("RATELIMIT_ENABLED", cfg.API.RateLimitEnabled)
	cfg.API.RateLimitRPM = l.envInt("RATELIMIT_RPM", cfg.API.RateLimitRPM)

	cfg.Tools.FFmpegBin = l.envString("FFMPEG_BIN", cfg.Tools.FFmpegBin)
	cfg.Tools.FFprobeBin = l.envString("FFPROBE_BIN", cfg.Tools.FFprobeBin)
	cfg.Tools.SpatialBin = l.envString("SPATIAL_BIN", cfg.Tools.SpatialBin)
	cfg.Tools.SpatialMKTBin = l.envString("SPATIALMKT_BIN", cfg.Tools.SpatialMKTBin)
	cfg.Tools.Timeout = l.envDuration("TOOL_TIMEOUT", cfg.Tools.Timeout)
	cfg.Tools.KillGrace = l.envDuration("TOOL_KILL_GRACE", cfg.Tools.KillGrace)

	cfg.Pipeline.SegmentDuration = l.envDuration("SEGMENT_DURATION", cfg.Pipeline.SegmentDuration)
	cfg.Pipeline.Workers = l.envInt("WORKERS", cfg.Pipeline.Workers)
	tc := &cfg.Pipeline.Transcode
	tc.VideoCodec = l.envString("TRANSCODE_VIDEO_CODEC", tc.VideoCodec)
	tc.Preset = l.envString("TRANSCODE_PRESET", tc.Preset)
	tc.CRF = l.envInt("TRANSCODE_CRF", tc.CRF)
	tc.PixelFormat = l.envString("TRANSCODE_PIX_FMT", tc.PixelFormat)
	tc.AudioCodec = l.envString("TRANSCODE_AUDIO_CODEC", tc.AudioCodec)
	tc.MovFlags = l.envString("TRANSCODE_MOVFLAGS", tc.MovFlags)

	cfg.Spatial.CDist = l.envFloat("SPATIAL_CDIST", cfg.Spatial.CDist)
	cfg.Spatial.HFOV = l.envFloat("SPATIAL_HFOV", cfg.Spatial.HFOV)
	cfg.Spatial.HAdjust = l.envFloat("SPATIAL_HADJUST", cfg.Spatial.HAdjust)
	cfg.Spatial.Primary = l.envString("SPATIAL_PRIMARY", cfg.Spatial.Primary)
	cfg.Spatial.Projection = l.envString("SPATIAL_PROJECTION", cfg.Spatial.Projection)
	cfg.Spatial.Format = l.envString("SPATIAL_FORMAT", cfg.Spatial.Format)

	cfg.Merge.Width = l.envInt("MERGE_WIDTH", cfg.Merge.Width)
	cfg.Merge.Height = l.envInt("MERGE_HEIGHT", cfg.Merge.Height)
	cfg.Merge.VideoCodec = l.envString("MERGE_VIDEO_CODEC", cfg.Merge.VideoCodec)
	cfg.Merge.PixelFormat = l.envString("MERGE_PIX_FMT", cfg.Merge.PixelFormat)

	cfg.Download.Timeout = l.envDuration("DOWNLOAD_TIMEOUT", cfg.Download.Timeout)
	cfg.Download.MaxBytes = l.envInt64("DOWNLOAD_MAX_BYTES", cfg.Download.MaxBytes)
	cfg.Download.RateLimitBytesPerSec = l.envInt64("DOWNLOAD_RATE_LIMIT", cfg.Download.RateLimitBytesPerSec)

	cfg.Storage.Region = l.envString("S3_REGION", cfg.Storage.Region)
	cfg.Storage.Endpoint = l.envString("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.UsePathStyle = l.envBool("S3_PATH_STYLE", cfg.Storage.UsePathStyle)
	cfg.Storage.AccessKeyID = l.envString("S3_ACCESS_KEY_ID", cfg.Storage.AccessKeyID)
	cfg.Storage.SecretAccessKey = l.envString("S3_SECRET_ACCESS_KEY", cfg.Storage.SecretAccessKey)
	cfg.Storage.OutputBucket = l.envString("S3_OUTPUT_BUCKET", cfg.Storage.OutputBucket)
	cfg.Storage.SplitBucket = l.envString("S3_SPLIT_BUCKET", cfg.Storage.SplitBucket)
	cfg.Storage.OutputURLTTL = l.envDuration("S3_OUTPUT_URL_TTL", cfg.Storage.OutputURLTTL)
	cfg.Storage.SplitURLTTL = l.envDuration("S3_SPLIT_URL_TTL", cfg.Storage.SplitURLTTL)
	cfg.Storage.BreakerThreshold = l.envInt("S3_BREAKER_THRESHOLD", cfg.Storage.BreakerThreshold)
	cfg.Storage.BreakerReset = l.envDuration("S3_BREAKER_RESET", cfg.Storage.BreakerReset)

	cfg.Jobs.Backend = l.envString("JOBS_BACKEND", cfg.Jobs.Backend)
	cfg.Jobs.Path = l.envString("JOBS_PATH", cfg.Jobs.Path)
	cfg.Jobs.RedisAddr = l.envString("REDIS_ADDR", cfg.Jobs.RedisAddr)
	cfg.Jobs.RedisPassword = l.envString("REDIS_PASSWORD", cfg.Jobs.RedisPassword)
	cfg.Jobs.RedisDB = l.envInt("REDIS_DB", cfg.Jobs.RedisDB)
	cfg.Jobs.TTL = l.envDuration("JOBS_TTL", cfg.Jobs.TTL)
	cfg.Jobs.MaxConcurrent = l.envInt("JOBS_MAX_CONCURRENT", cfg.Jobs.MaxConcurrent)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
}
