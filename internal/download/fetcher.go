// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package download fetches operation inputs from http(s) origins into the
// work directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
)

// DefaultFilename is used when a URL carries no usable basename.
const DefaultFilename = "video.mov"

const copyChunk = 32 * 1024

var (
	// ErrStatus is returned when the origin answers with anything but 200.
	ErrStatus = errors.New("unexpected download status")
	// ErrTooLarge is returned when the body exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("download exceeds size limit")
	// ErrScheme is returned for URLs that are not http or https.
	ErrScheme = errors.New("unsupported url scheme")
)

// Config bounds a Fetcher.
type Config struct {
	Timeout              time.Duration
	MaxBytes             int64 // 0 disables the limit
	RateLimitBytesPerSec int64 // 0 disables throttling
}

// Fetcher downloads URLs to local files.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	limiter  *rate.Limiter
}

// New builds a Fetcher whose transport is traced with otelhttp.
func New(cfg Config) *Fetcher {
	return NewWithTransport(cfg, http.DefaultTransport)
}

// NewWithTransport is New with an explicit base transport.
func NewWithTransport(cfg Config, base http.RoundTripper) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		maxBytes: cfg.MaxBytes,
	}
	if cfg.RateLimitBytesPerSec > 0 {
		burst := int(min(cfg.RateLimitBytesPerSec, copyChunk))
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitBytesPerSec), burst)
	}
	return f
}

// Fetch downloads rawURL to destPath and returns the number of bytes written.
// destPath only ever holds a complete body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string) (int64, error) {
	logger := log.WithComponentFromContext(ctx, "download")

	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return 0, fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return 0, fmt.Errorf("%w: content-length %d > %d", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	pending, err := renameio.NewPendingFile(destPath)
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	var body io.Reader = resp.Body
	if f.limiter != nil {
		body = &throttledReader{ctx: ctx, r: body, limiter: f.limiter}
	}
	if f.maxBytes > 0 {
		body = io.LimitReader(body, f.maxBytes+1)
	}

	n, err := io.Copy(pending, body)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("commit download: %w", err)
	}

	metrics.AddTransferBytes("download", n)
	logger.Info().
		Str(log.FieldEvent, "download.done").
		Str(log.FieldURL, u.Redacted()).
		Str(log.FieldPath, destPath).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("download complete")
	return n, nil
}

type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// FilenameFromURL returns the sanitized basename of the URL path, or
// DefaultFilename when nothing usable remains.
func FilenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return DefaultFilename
	}
	p := u.Path
	if unescaped, err := url.PathUnescape(u.EscapedPath()); err == nil {
		p = unescaped
	}
	base := path.Base(p)

	cleaned := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, base)
	cleaned = strings.TrimSpace(cleaned)

	switch cleaned {
	case "", ".", "..":
		return DefaultFilename
	}
	return cleaned
}
