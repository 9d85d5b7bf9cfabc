// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/spcut/internal/pipeline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubTranscoder completes segments after per-index delays and fails the
// indices listed in fail. It honours cancellation while waiting.
type stubTranscoder struct {
	delays map[int]time.Duration
	fail   map[int]string

	mu        sync.Mutex
	completed []int
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	started   atomic.Int32
}

func (s *stubTranscoder) TranscodeOne(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error) {
	s.started.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxFlight.Load()
		if n <= cur || s.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return model.TranscodedSegment{}, &model.TranscodeError{Index: seg.Index, Err: ctx.Err(), Canceled: true}
	case <-time.After(s.delays[seg.Index]):
	}

	if msg, ok := s.fail[seg.Index]; ok {
		return model.TranscodedSegment{}, &model.TranscodeError{Index: seg.Index, Diagnostic: msg}
	}

	s.mu.Lock()
	s.completed = append(s.completed, seg.Index)
	s.mu.Unlock()
	return model.TranscodedSegment{RequestID: seg.RequestID, Index: seg.Index, Path: fmt.Sprintf("out_%03d.ts", seg.Index)}, nil
}

func makeSegments(n int) []model.Segment {
	segs := make([]model.Segment, n)
	for i := range segs {
		segs[i] = model.Segment{RequestID: "rid", Index: i, Path: fmt.Sprintf("segment_rid_%03d.ts", i)}
	}
	return segs
}

func TestTranscodeAll_PreservesInputOrderUnderShuffledCompletion(t *testing.T) {
	const n = 12
	rng := rand.New(rand.NewSource(42))
	delays := map[int]time.Duration{}
	for i := 0; i < n; i++ {
		delays[i] = time.Duration(rng.Intn(30)) * time.Millisecond
	}
	// Force the first segment to finish last.
	delays[0] = 60 * time.Millisecond

	stub := &stubTranscoder{delays: delays}
	pool := NewPool(stub, 4)

	out, err := pool.TranscodeAll(context.Background(), makeSegments(n))
	require.NoError(t, err)
	require.Len(t, out, n)

	for i, ts := range out {
		assert.Equal(t, i, ts.Index)
		assert.Equal(t, fmt.Sprintf("out_%03d.ts", i), ts.Path)
	}
	assert.NotEqual(t, 0, stub.completed[0], "completion order differed from input order")
	assert.LessOrEqual(t, stub.maxFlight.Load(), int32(4))
}

func TestTranscodeAll_RespectsWorkerBound(t *testing.T) {
	delays := map[int]time.Duration{}
	for i := 0; i < 8; i++ {
		delays[i] = 20 * time.Millisecond
	}
	stub := &stubTranscoder{delays: delays}

	_, err := NewPool(stub, 2).TranscodeAll(context.Background(), makeSegments(8))
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.maxFlight.Load())
}

func TestTranscodeAll_FailFast(t *testing.T) {
	delays := map[int]time.Duration{0: 500 * time.Millisecond, 1: 500 * time.Millisecond, 2: 5 * time.Millisecond}
	for i := 3; i < 10; i++ {
		delays[i] = 500 * time.Millisecond
	}
	stub := &stubTranscoder{delays: delays, fail: map[int]string{2: "Error while opening encoder"}}

	start := time.Now()
	out, err := NewPool(stub, 3).TranscodeAll(context.Background(), makeSegments(10))
	require.Error(t, err)
	assert.Nil(t, out, "no partial output on failure")
	assert.Less(t, time.Since(start), 400*time.Millisecond, "in-flight work is canceled")

	var te *model.TranscodeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Index)
	assert.False(t, te.Canceled)
	assert.Equal(t, "TranscodeError: segment 2: Error while opening encoder", err.Error())
	assert.Less(t, stub.started.Load(), int32(10), "queued segments are not started after a failure")
}

func TestTranscodeAll_LowestIndexWinsOnSimultaneousFailure(t *testing.T) {
	const n = 6
	fail := map[int]string{1: "one", 3: "three", 4: "four"}

	for run := 0; run < 20; run++ {
		// Every segment waits until all have started, then the failing ones
		// return together regardless of cancellation.
		var started sync.WaitGroup
		started.Add(n)
		pool := NewPool(transcoderFunc(func(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error) {
			started.Done()
			started.Wait()
			if msg, ok := fail[seg.Index]; ok {
				return model.TranscodedSegment{}, &model.TranscodeError{Index: seg.Index, Diagnostic: msg}
			}
			return model.TranscodedSegment{RequestID: seg.RequestID, Index: seg.Index}, nil
		}), n)

		_, err := pool.TranscodeAll(context.Background(), makeSegments(n))

		var te *model.TranscodeError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, 1, te.Index, "run %d", run)
	}
}

func TestTranscodeAll_ParentCancellation(t *testing.T) {
	delays := map[int]time.Duration{0: time.Second, 1: time.Second}
	stub := &stubTranscoder{delays: delays}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewPool(stub, 2).TranscodeAll(ctx, makeSegments(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var te *model.TranscodeError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Canceled)
}

func TestTranscodeAll_WrapsForeignErrors(t *testing.T) {
	pool := NewPool(transcoderFunc(func(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error) {
		return model.TranscodedSegment{}, errors.New("disk full")
	}), 1)

	_, err := pool.TranscodeAll(context.Background(), makeSegments(1))
	assert.EqualError(t, err, "TranscodeError: segment 0: disk full")
}

func TestNewPool_DefaultsToNumCPU(t *testing.T) {
	assert.Greater(t, NewPool(nil, 0).Workers(), 0)
	assert.Equal(t, 3, NewPool(nil, 3).Workers())
}

type transcoderFunc func(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error)

func (f transcoderFunc) TranscodeOne(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error) {
	return f(ctx, seg)
}

type panicOnIndex struct {
	stubTranscoder
	index int
}

func (p *panicOnIndex) TranscodeOne(ctx context.Context, seg model.Segment) (model.TranscodedSegment, error) {
	if seg.Index == p.index {
		panic("encoder exploded")
	}
	return p.stubTranscoder.TranscodeOne(ctx, seg)
}

func TestTranscodeAll_WorkerPanicFailsBatch(t *testing.T) {
	tr := &panicOnIndex{index: 2}
	p := NewPool(tr, 2)

	var (
		out []model.TranscodedSegment
		err error
	)
	require.NotPanics(t, func() { out, err = p.TranscodeAll(context.Background(), makeSegments(5)) })
	assert.Nil(t, out)

	var te *model.TranscodeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Index)
	assert.False(t, te.Canceled)
	assert.Equal(t, "TranscodeError: segment 2: panic: encoder exploded", err.Error())
}
