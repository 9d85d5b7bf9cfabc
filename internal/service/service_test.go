// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/spcut/internal/admission"
	"github.com/ManuGH/spcut/internal/config"
	"github.com/ManuGH/spcut/internal/download"
	"github.com/ManuGH/spcut/internal/jobs"
	"github.com/ManuGH/spcut/internal/pipeline/exec"
	"github.com/ManuGH/spcut/internal/spatial"
	"github.com/ManuGH/spcut/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticConfig struct{ cfg config.AppConfig }

func (s staticConfig) Get() config.AppConfig { return s.cfg }

// fakeFetcher "downloads" fake media whose duration is taken from the URL
// query, e.g. https://cdn.test/clip.mov?d=25.
type fakeFetcher struct {
	fail map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, dest string) (int64, error) {
	if err, ok := f.fail[rawURL]; ok {
		return 0, err
	}
	d := "25"
	if i := strings.Index(rawURL, "?d="); i >= 0 {
		d = rawURL[i+3:]
	}
	if err := os.WriteFile(dest, []byte(d), 0o644); err != nil {
		return 0, err
	}
	return int64(len(d)), nil
}

type published struct {
	Bucket   string
	Key      string
	TTL      time.Duration
	Duration float64
}

type fakePublisher struct {
	mu    sync.Mutex
	items []published
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, bucket, key, path string, ttl time.Duration) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	d, err := testutil.ReadMedia(path)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, published{Bucket: bucket, Key: key, TTL: ttl, Duration: d})
	return "https://s3.test/" + bucket + "/" + key + "?X-Amz-Expires=" + fmt.Sprint(int(ttl.Seconds())), nil
}

func (p *fakePublisher) byKey() map[string]published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]published, len(p.items))
	for _, it := range p.items {
		out[it.Key] = it
	}
	return out
}

type fixture struct {
	svc     *Service
	media   *testutil.FakeMedia
	fetcher *fakeFetcher
	pub     *fakePublisher
	store   jobs.Store
	workDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Pipeline.Workers = 2

	f := &fixture{
		media:   &testutil.FakeMedia{},
		fetcher: &fakeFetcher{fail: map[string]error{}},
		pub:     &fakePublisher{},
		store:   jobs.NewMemoryStore(time.Hour),
		workDir: cfg.WorkDir,
	}
	svc, err := New(Deps{
		Config:    staticConfig{cfg},
		Runner:    f.media,
		Fetcher:   f.fetcher,
		Publisher: f.pub,
		Jobs:      f.store,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	f.svc = svc
	return f
}

func (f *fixture) assertWorkDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "work dir must be empty after the operation")
}

func (f *fixture) record(t *testing.T, id string) jobs.Record {
	t.Helper()
	rec, err := f.svc.Job(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestProcess(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Process(context.Background(), "https://cdn.test/videos/clip.mov?d=12")
	require.NoError(t, err)
	require.NotEmpty(t, res.JobID)

	key := res.JobID + "/clip_done.mov"
	assert.Equal(t, "https://s3.test/spcut-output/"+key+"?X-Amz-Expires=86400", res.Outputs["output"])

	pub := f.pub.byKey()[key]
	assert.Equal(t, "spcut-output", pub.Bucket)
	assert.Equal(t, 24*time.Hour, pub.TTL)
	assert.InDelta(t, 12, pub.Duration, 0.001)

	var makeCalls []exec.Command
	for _, c := range f.media.Calls() {
		if c.Tool == spatial.ToolMake {
			makeCalls = append(makeCalls, c)
		}
	}
	require.Len(t, makeCalls, 1)
	assert.Equal(t, "y\n", makeCalls[0].Stdin)

	rec := f.record(t, res.JobID)
	assert.Equal(t, jobs.StateSucceeded, rec.State)
	assert.Equal(t, OpProcess, rec.Operation)
	assert.Equal(t, res.Outputs, rec.Outputs)
	f.assertWorkDirEmpty(t)
}

func TestSplit(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Split(context.Background(), "https://cdn.test/IMG_0001.MOV?d=25")
	require.NoError(t, err)
	require.Contains(t, res.Outputs, "left")
	require.Contains(t, res.Outputs, "right")

	pubs := f.pub.byKey()
	for _, eye := range []string{"LEFT", "RIGHT"} {
		p, ok := pubs[res.JobID+"/IMG_0001_"+eye+".mov"]
		require.True(t, ok, "eye %s not published", eye)
		assert.Equal(t, "spcut-split", p.Bucket)
		assert.Equal(t, time.Hour, p.TTL)
		assert.InDelta(t, 25, p.Duration, 0.001, "eye %s must survive the segment pipeline intact", eye)
	}

	// 25s at 10s segments: three segments per eye, each reassembled in order.
	for _, m := range f.media.Manifests() {
		assert.Len(t, m, 3)
	}
	assert.Len(t, f.media.Manifests(), 2)

	rec := f.record(t, res.JobID)
	assert.Equal(t, jobs.StateSucceeded, rec.State)
	f.assertWorkDirEmpty(t)
}

func TestMerge(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Merge(context.Background(), MergeRequest{
		UID:      "user-42",
		LeftURL:  "https://cdn.test/eye.mov?d=10",
		RightURL: "https://cdn.test/eye.mov?d=14",
	})
	require.NoError(t, err)

	key := res.JobID + "/user-42_1700000000_done.mov"
	p, ok := f.pub.byKey()[key]
	require.True(t, ok)
	assert.Equal(t, "spcut-output", p.Bucket)
	assert.InDelta(t, 14, p.Duration, 0.001)

	var merge exec.Command
	for _, c := range f.media.Calls() {
		if c.Tool == spatial.ToolMerge {
			merge = c
		}
	}
	require.NotEmpty(t, merge.Args)
	assert.Contains(t, merge.Args, "1280x1440")
	f.assertWorkDirEmpty(t)
}

func TestTranscode(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Transcode(context.Background(), "https://cdn.test/talk.mp4?d=42")
	require.NoError(t, err)

	p, ok := f.pub.byKey()[res.JobID+"/talk_transcoded.mov"]
	require.True(t, ok)
	assert.InDelta(t, 42, p.Duration, 0.001)
	require.Len(t, f.media.Manifests(), 1)
	assert.Len(t, f.media.Manifests()[0], 5)

	rec := f.record(t, res.JobID)
	assert.Equal(t, jobs.StateSucceeded, rec.State)
	assert.Empty(t, rec.Phase)
	f.assertWorkDirEmpty(t)
}

func TestTranscode_PipelineFailure(t *testing.T) {
	f := newFixture(t)
	f.media.Fail = func(cmd exec.Command) string {
		if cmd.Tool == "ffmpeg-segment" {
			return "moov atom not found"
		}
		return ""
	}

	res, err := f.svc.Transcode(context.Background(), "https://cdn.test/broken.mp4?d=30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SegmentationError")
	assert.Empty(t, f.pub.byKey())

	rec := f.record(t, res.JobID)
	assert.Equal(t, jobs.StateFailed, rec.State)
	assert.Contains(t, rec.Error, "moov atom not found")
	f.assertWorkDirEmpty(t)
}

func TestSplit_PublishFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("AccessDenied")

	res, err := f.svc.Split(context.Background(), "https://cdn.test/clip.mov?d=20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
	assert.Equal(t, jobs.StateFailed, f.record(t, res.JobID).State)
	f.assertWorkDirEmpty(t)
}

func TestProcess_DownloadFailure(t *testing.T) {
	f := newFixture(t)
	url := "https://cdn.test/gone.mov"
	f.fetcher.fail[url] = fmt.Errorf("%w: 404", download.ErrStatus)

	res, err := f.svc.Process(context.Background(), url)
	require.ErrorIs(t, err, download.ErrStatus)
	assert.Contains(t, err.Error(), "download video")
	assert.NotErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, jobs.StateFailed, f.record(t, res.JobID).State)
	f.assertWorkDirEmpty(t)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Process(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Split(ctx, "ftp://cdn.test/a.mov")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Transcode(ctx, "https:///nohost.mov")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Merge(ctx, MergeRequest{UID: "../etc", LeftURL: "https://a/b", RightURL: "https://a/c"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Merge(ctx, MergeRequest{UID: "ok", LeftURL: "https://a/b"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.media.Calls())
}

func TestBusy(t *testing.T) {
	f := newFixture(t)
	gate := admission.NewGate(1)
	f.svc.gate = gate

	release, err := gate.Acquire(context.Background(), "test")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.Process(ctx, "https://cdn.test/clip.mov")
	require.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, f.media.Calls())
}

func TestRecoversPanic(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.execute(context.Background(), OpProcess, func(ctx context.Context, j *job) (map[string]string, error) {
		partial := j.path("partial.mov")
		require.NoError(t, os.WriteFile(partial, []byte("1"), 0o644))
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
	assert.Equal(t, jobs.StateFailed, f.record(t, res.JobID).State)
	f.assertWorkDirEmpty(t)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	for _, want := range []string{"config source", "runner", "fetcher", "publisher", "jobs store"} {
		assert.Contains(t, err.Error(), want)
	}
}
