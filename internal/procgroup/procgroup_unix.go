// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

// Package procgroup manages external tool processes as whole process groups,
// so that helpers spawned by ffmpeg or the spatial tools die with their parent.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// Set makes the command the leader of a fresh process group. Its pid is then
// also the group id.
func Set(cmd *exec.Cmd) {
	attr := cmd.SysProcAttr
	if attr == nil {
		attr = &syscall.SysProcAttr{}
		cmd.SysProcAttr = attr
	}
	attr.Setpgid = true
}

// Kill delivers sig to every process in the command's group. It returns
// ErrGone once the group has exited and nil for a command that never started.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		err = syscall.Kill(-pgid, sig)
	}
	if errors.Is(err, syscall.ESRCH) {
		return ErrGone
	}
	return err
}
