// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "spcut",
		WorkDir:    filepath.Join(os.TempDir(), "spcut"),
		API: APIConfig{
			ListenAddr:      ":3000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // operations stream long-running tool work
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPM:    60,
		},
		Tools: ToolsConfig{
			FFmpegBin:     "ffmpeg",
			FFprobeBin:    "ffprobe",
			SpatialBin:    "spatial",
			SpatialMKTBin: "spatialmkt",
			Timeout:       30 * time.Minute,
			KillGrace:     5 * time.Second,
		},
		Pipeline: PipelineConfig{
			SegmentDuration: 10 * time.Second,
			Transcode: TranscodeConfig{
				VideoCodec:  "libx264",
				Preset:      "ultrafast",
				CRF:         23,
				PixelFormat: "yuv420p",
				AudioCodec:  "copy",
				MovFlags:    "+faststart",
			},
		},
		Spatial: SpatialConfig{
			CDist:      19.24,
			HFOV:       63.4,
			HAdjust:    0.02,
			Primary:    "right",
			Projection: "rect",
			Format:     "ou",
		},
		Merge: MergeConfig{
			Width:       1280,
			Height:      720,
			VideoCodec:  "libx264",
			PixelFormat: "yuv420p",
		},
		Download: DownloadConfig{
			Timeout:  10 * time.Minute,
			MaxBytes: 10 << 30,
		},
		Storage: StorageConfig{
			Region:       "us-east-1",
			OutputBucket: "spcut-output",
			SplitBucket:  "spcut-split",
			OutputURLTTL: 24 * time.Hour,
			SplitURLTTL:  time.Hour,

			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Jobs: JobsConfig{
			Backend:       "memory",
			RedisAddr:     "localhost:6379",
			TTL:           24 * time.Hour,
			MaxConcurrent: 2,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}
