// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"bufio"
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh
}

// startReadyGroup starts script and blocks until it prints its first line,
// so signal handlers installed before that line are in place.
func startReadyGroup(t *testing.T, script string) (*exec.Cmd, chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ready\n", line)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh
}

func TestSet_MakesGroupLeader(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 5")
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pgid)

	_ = Terminate(cmd, waitCh, 100*time.Millisecond)
}

func TestTerminate_KillsWholeGroup(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 30 & sleep 30")
	pgid := cmd.Process.Pid

	err := Terminate(cmd, waitCh, 200*time.Millisecond)
	require.Error(t, err, "a signalled process reports a non-nil wait error")

	assert.Eventually(t, func() bool {
		return errors.Is(syscall.Kill(-pgid, syscall.Signal(0)), syscall.ESRCH)
	}, 2*time.Second, 20*time.Millisecond, "process group should be gone")
}

func TestTerminate_EscalatesToSIGKILL(t *testing.T) {
	// The shell ignores SIGTERM, so only SIGKILL can stop it.
	cmd, waitCh := startReadyGroup(t, "trap '' TERM; echo ready; sleep 30")

	start := time.Now()
	err := Terminate(cmd, waitCh, 150*time.Millisecond)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestTerminate_NilCommand(t *testing.T) {
	assert.NoError(t, Terminate(nil, nil, time.Millisecond))
	assert.NoError(t, Terminate(&exec.Cmd{}, nil, time.Millisecond))
}

func TestKill_ProcessAlreadyExited(t *testing.T) {
	cmd := exec.Command("true")
	Set(cmd)
	require.NoError(t, cmd.Run())

	err := Kill(cmd, syscall.SIGTERM)
	assert.ErrorIs(t, err, ErrGone)
}
