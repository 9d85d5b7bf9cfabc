// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// WorkDirChecker verifies that the work directory exists and is writable.
type WorkDirChecker struct {
	path string
}

// NewWorkDirChecker creates a checker for the work directory.
func NewWorkDirChecker(path string) *WorkDirChecker {
	return &WorkDirChecker{path: path}
}

func (c *WorkDirChecker) Name() string {
	return "workdir"
}

func (c *WorkDirChecker) Check(context.Context) CheckResult {
	if err := probeWritable(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

// probeWritable creates and removes a temp file in dir.
func probeWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Tool names an external binary and how much its absence matters.
type Tool struct {
	Name string
	Bin  string
	// Required tools make the service unhealthy when missing; the others
	// only degrade it.
	Required bool
}

// ToolChecker resolves external binaries on PATH.
type ToolChecker struct {
	tools    []Tool
	lookPath func(string) (string, error)
}

// NewToolChecker creates a checker for the given tools.
func NewToolChecker(tools ...Tool) *ToolChecker {
	return &ToolChecker{tools: tools, lookPath: exec.LookPath}
}

func (c *ToolChecker) Name() string {
	return "tools"
}

func (c *ToolChecker) Check(context.Context) CheckResult {
	var missingRequired, missingOptional []string
	for _, t := range c.tools {
		if _, err := c.lookPath(t.Bin); err != nil {
			if t.Required {
				missingRequired = append(missingRequired, t.Name)
			} else {
				missingOptional = append(missingOptional, t.Name)
			}
		}
	}

	switch {
	case len(missingRequired) > 0:
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "missing: " + strings.Join(append(missingRequired, missingOptional...), ", "),
		}
	case len(missingOptional) > 0:
		return CheckResult{
			Status:  StatusDegraded,
			Message: "missing: " + strings.Join(missingOptional, ", "),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d tools available", len(c.tools))}
}

// Pinger is implemented by the job status stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a dependency's Ping result.
type PingChecker struct {
	name string
	p    Pinger
}

// NewPingChecker creates a checker that calls p.Ping.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, p: p}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.p.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
