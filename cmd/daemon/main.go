// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/spcut/internal/api"
	"github.com/ManuGH/spcut/internal/config"
	"github.com/ManuGH/spcut/internal/download"
	"github.com/ManuGH/spcut/internal/health"
	"github.com/ManuGH/spcut/internal/jobs"
	spclog "github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/service"
	"github.com/ManuGH/spcut/internal/storage"
	"github.com/ManuGH/spcut/internal/telemetry"
	"github.com/ManuGH/spcut/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the environment is read")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	spclog.Configure(spclog.Config{
		Level:   "info",
		Service: "spcut",
		Version: version.Version,
	})
	logger := spclog.WithComponent("daemon")

	// A missing .env is the normal production case.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str(spclog.FieldEvent, "dotenv.load_failed").Str(spclog.FieldPath, *envFile).Msg("failed to load env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(spclog.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	spclog.Configure(spclog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = spclog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str(spclog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str(spclog.FieldPath, effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(spclog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(spclog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	if err := run(ctx, logger, cfg, loader); err != nil {
		logger.Fatal().
			Err(err).
			Str(spclog.FieldEvent, "daemon.failed").
			Msg("daemon failed")
	}
	logger.Info().Str(spclog.FieldEvent, "shutdown.complete").Msg("server exiting")
}

func run(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig, loader *config.Loader) error {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str(spclog.FieldEvent, "telemetry.shutdown_failed").Msg("telemetry shutdown failed")
		}
	}()

	store, err := jobs.Open(ctx, jobs.Config{
		Backend: cfg.Jobs.Backend,
		Path:    cfg.Jobs.Path,
		Redis: jobs.RedisConfig{
			Addr:     cfg.Jobs.RedisAddr,
			Password: cfg.Jobs.RedisPassword,
			DB:       cfg.Jobs.RedisDB,
		},
		TTL: cfg.Jobs.TTL,
	})
	if err != nil {
		return fmt.Errorf("open jobs store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Str(spclog.FieldEvent, "jobs.close_failed").Msg("failed to close jobs store")
		}
	}()

	s3Store, err := storage.NewS3Store(ctx, storage.Config{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	}, telemetry.Tracer("spcut/storage"))
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	publisher := storage.NewGuardedPublisher(s3Store, cfg.Storage.BreakerThreshold, cfg.Storage.BreakerReset)

	holder := config.NewHolder(cfg, loader)
	svc, err := service.New(service.Deps{
		Config: holder,
		Runner: exec.NewRunner(cfg.Tools.Timeout, cfg.Tools.KillGrace),
		Fetcher: download.New(download.Config{
			Timeout:              cfg.Download.Timeout,
			MaxBytes:             cfg.Download.MaxBytes,
			RateLimitBytesPerSec: cfg.Download.RateLimitBytesPerSec,
		}),
		Publisher: publisher,
		Jobs:      store,
		Tracer:    telemetry.Tracer("spcut/service"),
	})
	if err != nil {
		return err
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewWorkDirChecker(cfg.WorkDir))
	hm.RegisterChecker(health.NewToolChecker(checkedTools(cfg)...))
	hm.RegisterChecker(health.NewPingChecker("jobs", store))

	srv := api.New(api.Config{
		ServiceName:      telemetryServiceName(cfg),
		RateLimitEnabled: cfg.API.RateLimitEnabled,
		RateLimitRPM:     cfg.API.RateLimitRPM,
	}, svc, hm)

	httpServer := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
	}

	logger.Info().
		Str(spclog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting spcut")
	logger.Info().Msgf("→ Work dir: %s", cfg.WorkDir)
	logger.Info().Msgf("→ Jobs backend: %s", cfg.Jobs.Backend)
	if cfg.Storage.Endpoint != "" {
		logger.Info().Msgf("→ Storage endpoint: %s", maskURL(cfg.Storage.Endpoint))
	}
	logger.Info().Msgf("→ Buckets: output=%s split=%s", cfg.Storage.OutputBucket, cfg.Storage.SplitBucket)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := holder.StartWatcher(gctx); err != nil {
			logger.Warn().Err(err).Str(spclog.FieldEvent, "config.watcher_failed").Msg("config hot reload unavailable")
		}
		return nil
	})
	g.Go(func() error {
		watchSIGHUP(gctx, logger, holder)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(spclog.FieldEvent, "shutdown.start").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// watchSIGHUP reloads the configuration on SIGHUP until ctx ends.
func watchSIGHUP(ctx context.Context, logger zerolog.Logger, holder *config.Holder) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := holder.Reload(ctx); err != nil {
				logger.Error().Err(err).Str(spclog.FieldEvent, "config.sighup_reload_failed").Msg("config reload on SIGHUP failed")
			}
		}
	}
}

// checkedTools lists the external binaries reported by the health probes.
// A missing ffmpeg makes the service unhealthy; the others only degrade it.
func checkedTools(cfg config.AppConfig) []health.Tool {
	return []health.Tool{
		{Name: "ffmpeg", Bin: cfg.Tools.FFmpegBin, Required: true},
		{Name: "ffprobe", Bin: cfg.Tools.FFprobeBin},
		{Name: "spatial", Bin: cfg.Tools.SpatialBin},
		{Name: "spatialmkt", Bin: cfg.Tools.SpatialMKTBin},
	}
}

func telemetryServiceName(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.LogService
}
