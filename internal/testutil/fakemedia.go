// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testutil

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/spcut/internal/pipeline/exec"
)

// FakeMedia is an exec.Runner that emulates the ffmpeg invocations of the
// segment pipeline on plain text files. A "media" file holds its duration in
// seconds, e.g. "25". Segmenting writes one file per segment holding that
// segment's duration, transcoding copies the file and concatenating sums the
// durations listed in the manifest. The stereo tools are emulated too:
// spatial make copies its input, spatialmkt writes both eyes and the merge
// keeps the longer of its two inputs.
type FakeMedia struct {
	// Fail, when set, is consulted before each command; a non-empty return
	// value makes the command exit 1 with that text on stderr.
	Fail func(cmd exec.Command) string
	// Delay, when set, delays each command before it takes effect.
	Delay func(cmd exec.Command) time.Duration
	// Other handles commands that are not recognised ffmpeg pipeline calls.
	Other func(ctx context.Context, cmd exec.Command) (exec.Result, error)

	mu        sync.Mutex
	calls     []exec.Command
	manifests [][]string
	inFlight  int
	maxFlight int
}

// WriteMedia creates a fake media file of the given duration.
func WriteMedia(t testing.TB, path string, seconds float64) {
	t.Helper()
	if err := os.WriteFile(path, []byte(formatSeconds(seconds)), 0o644); err != nil {
		t.Fatalf("write media %s: %v", path, err)
	}
}

// ReadMedia returns the duration stored in a fake media file.
func ReadMedia(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

// Calls returns a copy of every command received so far.
func (f *FakeMedia) Calls() []exec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exec.Command(nil), f.calls...)
}

// Manifests returns the parsed entries of every concat manifest seen.
func (f *FakeMedia) Manifests() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.manifests...)
}

// MaxInFlight returns the highest number of concurrently running commands.
func (f *FakeMedia) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}

// Run implements exec.Runner.
func (f *FakeMedia) Run(ctx context.Context, cmd exec.Command) (exec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	tool := cmd.Tool
	if tool == "" {
		tool = cmd.Bin
	}

	if f.Delay != nil {
		if d := f.Delay(cmd); d > 0 {
			select {
			case <-ctx.Done():
				return exec.Result{ExitCode: -1}, fmt.Errorf("%s: %w", tool, ctx.Err())
			case <-time.After(d):
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return exec.Result{ExitCode: -1}, fmt.Errorf("%s: %w", tool, err)
	}
	if f.Fail != nil {
		if msg := f.Fail(cmd); msg != "" {
			return exec.Result{ExitCode: 1, Stderr: msg}, &exec.ExitError{Tool: tool, Code: 1, Stderr: msg}
		}
	}

	var err error
	switch {
	case cmd.Tool == "spatial-make":
		err = copyFile(argAfter(cmd.Args, "-i"), argAfter(cmd.Args, "-o"))
	case cmd.Tool == "spatialmkt-split":
		err = f.split(argAfter(cmd.Args, "--input-file"))
	case cmd.Tool == "ffmpeg-merge":
		err = f.merge(cmd.Args)
	case hasPair(cmd.Args, "-f", "segment"):
		err = f.segment(cmd.Args)
	case hasPair(cmd.Args, "-f", "concat"):
		err = f.concat(cmd.Args)
	case hasFlag(cmd.Args, "-c:v"):
		err = copyFile(argAfter(cmd.Args, "-i"), last(cmd.Args))
	case f.Other != nil:
		return f.Other(ctx, cmd)
	}
	if err != nil {
		return exec.Result{ExitCode: 1, Stderr: err.Error()}, &exec.ExitError{Tool: tool, Code: 1, Stderr: err.Error()}
	}
	return exec.Result{}, nil
}

func (f *FakeMedia) segment(args []string) error {
	total, err := ReadMedia(argAfter(args, "-i"))
	if err != nil {
		return fmt.Errorf("Invalid data found when processing input: %w", err)
	}
	segLen, err := strconv.ParseFloat(argAfter(args, "-segment_time"), 64)
	if err != nil || segLen <= 0 {
		return fmt.Errorf("bad -segment_time")
	}
	pattern := last(args)
	n := int(math.Ceil(total / segLen))
	for i := 0; i < n; i++ {
		d := math.Min(segLen, total-float64(i)*segLen)
		if err := os.WriteFile(fmt.Sprintf(pattern, i), []byte(formatSeconds(d)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeMedia) concat(args []string) error {
	manifest := argAfter(args, "-i")
	fh, err := os.Open(manifest)
	if err != nil {
		return err
	}
	defer fh.Close()

	var entries []string
	var total float64
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		path = strings.ReplaceAll(path, `'\''`, "'")
		entries = append(entries, path)
		d, err := ReadMedia(path)
		if err != nil {
			return fmt.Errorf("Impossible to open '%s'", path)
		}
		total += d
	}
	if err := sc.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.manifests = append(f.manifests, entries)
	f.mu.Unlock()

	return os.WriteFile(last(args), []byte(formatSeconds(total)), 0o644)
}

func (f *FakeMedia) split(in string) error {
	dir, base := filepath.Split(in)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, eye := range []string{"_LEFT.mov", "_RIGHT.mov"} {
		if err := copyFile(in, filepath.Join(dir, stem+eye)); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeMedia) merge(args []string) error {
	var inputs []float64
	for i := 0; i < len(args)-1; i++ {
		if args[i] != "-i" {
			continue
		}
		d, err := ReadMedia(args[i+1])
		if err != nil {
			return fmt.Errorf("%s: No such file or directory", args[i+1])
		}
		inputs = append(inputs, d)
	}
	if len(inputs) != 2 {
		return fmt.Errorf("vstack needs 2 inputs, got %d", len(inputs))
	}
	return os.WriteFile(last(args), []byte(formatSeconds(math.Max(inputs[0], inputs[1]))), 0o644)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func hasPair(args []string, flag, value string) bool {
	return argAfter(args, flag) == value
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func last(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
