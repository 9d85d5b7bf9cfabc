// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads spcut configuration from defaults, a YAML file and
// SPCUT_* environment variables, and supports hot reload of the file.
package config

import "time"

// AppConfig is the complete service configuration.
type AppConfig struct {
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	Version    string `yaml:"-"`

	WorkDir string `yaml:"workDir"`

	API       APIConfig       `yaml:"api"`
	Tools     ToolsConfig     `yaml:"tools"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Spatial   SpatialConfig   `yaml:"spatial"`
	Merge     MergeConfig     `yaml:"merge"`
	Download  DownloadConfig  `yaml:"download"`
	Storage   StorageConfig   `yaml:"storage"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	ListenAddr       string        `yaml:"listenAddr"`
	ReadTimeout      time.Duration `yaml:"readTimeout"`
	WriteTimeout     time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout"`
	RateLimitEnabled bool          `yaml:"rateLimitEnabled"`
	RateLimitRPM     int           `yaml:"rateLimitRpm"`
}

// ToolsConfig locates the external binaries and bounds each invocation.
type ToolsConfig struct {
	FFmpegBin     string        `yaml:"ffmpegBin"`
	FFprobeBin    string        `yaml:"ffprobeBin"`
	SpatialBin    string        `yaml:"spatialBin"`
	SpatialMKTBin string        `yaml:"spatialMktBin"`
	Timeout       time.Duration `yaml:"timeout"`
	KillGrace     time.Duration `yaml:"killGrace"`
}

// PipelineConfig configures the segment transcode pipeline.
type PipelineConfig struct {
	SegmentDuration time.Duration   `yaml:"segmentDuration"`
	Workers         int             `yaml:"workers"` // 0 means runtime.NumCPU()
	Transcode       TranscodeConfig `yaml:"transcode"`
}

// TranscodeConfig holds the per-segment encoder settings.
type TranscodeConfig struct {
	VideoCodec  string `yaml:"videoCodec"`
	Preset      string `yaml:"preset"`
	CRF         int    `yaml:"crf"`
	PixelFormat string `yaml:"pixelFormat"`
	AudioCodec  string `yaml:"audioCodec"`
	MovFlags    string `yaml:"movFlags"`
}

// SpatialConfig holds the `spatial make` parameters.
type SpatialConfig struct {
	CDist      float64 `yaml:"cdist"`
	HFOV       float64 `yaml:"hfov"`
	HAdjust    float64 `yaml:"hadjust"`
	Primary    string  `yaml:"primary"`
	Projection string  `yaml:"projection"`
	Format     string  `yaml:"format"`
}

// MergeConfig controls the vertical stack of two inputs.
type MergeConfig struct {
	Width       int    `yaml:"width"`  // per eye
	Height      int    `yaml:"height"` // per eye
	VideoCodec  string `yaml:"videoCodec"`
	PixelFormat string `yaml:"pixelFormat"`
}

// DownloadConfig bounds origin downloads.
type DownloadConfig struct {
	Timeout              time.Duration `yaml:"timeout"`
	MaxBytes             int64         `yaml:"maxBytes"`
	RateLimitBytesPerSec int64         `yaml:"rateLimitBytesPerSec"`
}

// StorageConfig configures the S3-compatible object store.
type StorageConfig struct {
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	UsePathStyle    bool          `yaml:"usePathStyle"`
	AccessKeyID     string        `yaml:"accessKeyId"`
	SecretAccessKey string        `yaml:"secretAccessKey"`
	OutputBucket    string        `yaml:"outputBucket"`
	SplitBucket     string        `yaml:"splitBucket"`
	OutputURLTTL    time.Duration `yaml:"outputUrlTtl"`
	SplitURLTTL     time.Duration `yaml:"splitUrlTtl"`

	// BreakerThreshold consecutive upload failures stop publishing for
	// BreakerReset. Zero disables the breaker.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// JobsConfig selects the job status backend and admission limit.
type JobsConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis, badger, sqlite
	Path          string        `yaml:"path"`    // badger directory or sqlite file
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	TTL           time.Duration `yaml:"ttl"`
	MaxConcurrent int           `yaml:"maxConcurrent"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporterType"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
