// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/spcut/internal/config"
	"github.com/ManuGH/spcut/internal/log"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWorkDir(logger, cfg.WorkDir); err != nil {
		return fmt.Errorf("work directory check failed: %w", err)
	}

	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWorkDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := probeWritable(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logger.Info().Str(log.FieldPath, path).Msg("work directory is writable")
	return nil
}

// checkTargetedValidations performs runtime-critical validations that the
// config schema cannot express.
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.API.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.API.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid API listen address %q: %w", cfg.API.ListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid API listen port %q in %q", port, cfg.API.ListenAddr)
		}
	}

	if cfg.Storage.Endpoint != "" {
		u, err := url.Parse(cfg.Storage.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid storage endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("storage endpoint scheme must be http or https, got: %s", u.Scheme)
		}
	}

	// Missing tools are reported by the readiness probe; they do not block startup.
	for _, bin := range []string{cfg.Tools.FFmpegBin, cfg.Tools.SpatialBin, cfg.Tools.SpatialMKTBin} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Warn().Str(log.FieldTool, bin).Err(err).Msg("external tool not found")
		}
	}

	if strings.EqualFold(cfg.Jobs.Backend, "memory") {
		logger.Warn().
			Str("jobs_backend", cfg.Jobs.Backend).
			Msg("job status is kept in memory and lost on restart")
	}

	tempDir := filepath.Clean(os.TempDir())
	workDir := filepath.Clean(cfg.WorkDir)
	if cfg.Jobs.Path != "" && tempDir != "." && strings.HasPrefix(filepath.Clean(cfg.Jobs.Path), tempDir+string(filepath.Separator)) {
		logger.Warn().
			Str("jobs_path", cfg.Jobs.Path).
			Msg("job store is under temp; job status may be lost on reboot")
	}
	if workDir == "/" {
		return fmt.Errorf("work directory must not be the filesystem root")
	}

	return nil
}
